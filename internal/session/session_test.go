package session

import (
	"net/http/httptest"
	"testing"

	"github.com/coachline/coachline/internal/models"
	"github.com/gin-gonic/gin"
)

func TestSessionRoundTripOnContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if From(c) != nil {
		t.Fatalf("expected no session on a fresh context")
	}
	if UserID(c) != 0 {
		t.Fatalf("expected anonymous user id 0")
	}

	Set(c, &Session{UserID: 7, Username: "asha", Role: models.RoleAdmin})
	s := From(c)
	if s == nil || s.UserID != 7 || s.Username != "asha" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if !s.IsAdmin() {
		t.Fatalf("expected admin session")
	}
	if UserID(c) != 7 {
		t.Fatalf("expected user id 7, got %d", UserID(c))
	}
}

func TestNilSessionIsNotAdmin(t *testing.T) {
	var s *Session
	if s.IsAdmin() {
		t.Fatalf("nil session must not be admin")
	}
}

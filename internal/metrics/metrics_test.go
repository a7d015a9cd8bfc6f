package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsMatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodGet, "/ping/:id", "204"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/7", nil))
	after := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodGet, "/ping/:id", "204"))

	if after-before != 1 {
		t.Fatalf("expected one counted request, got %v", after-before)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	Attempts.WithLabelValues("started").Inc()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "coachline_quota_attempts_total") {
		t.Fatalf("attempt counter missing from exposition")
	}
}

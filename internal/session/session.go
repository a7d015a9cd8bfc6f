// Package session carries the authenticated caller through a request.
package session

import (
	"github.com/coachline/coachline/internal/models"
	"github.com/gin-gonic/gin"
)

// contextKey is the gin context key holding the *Session.
const contextKey = "coachline.session"

// Session is the signed-in caller resolved once per request by the auth middleware.
type Session struct {
	UserID   uint64
	Username string
	Role     models.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == models.RoleAdmin
}

// Set stores s on the request context.
func Set(c *gin.Context, s *Session) {
	c.Set(contextKey, s)
}

// From returns the session attached by the auth middleware, or nil.
func From(c *gin.Context) *Session {
	value, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	s, _ := value.(*Session)
	return s
}

// UserID returns the caller's id, or 0 when the request is anonymous.
func UserID(c *gin.Context) uint64 {
	if s := From(c); s != nil {
		return s.UserID
	}
	return 0
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/coachline/coachline/internal/session"
	"github.com/gin-gonic/gin"
)

// readAdminIDFromContext returns the admin ID from the request session.
func readAdminIDFromContext(c *gin.Context) (uint64, bool) {
	s := session.From(c)
	if s == nil || !s.IsAdmin() {
		return 0, false
	}
	return s.UserID, true
}

// parseID reads the numeric :id path parameter, writing 400 on failure.
func parseID(c *gin.Context) (uint64, bool) {
	return parseUintParam(c, "id")
}

func parseUintParam(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// pageParams reads limit/offset query parameters with sane bounds.
func pageParams(c *gin.Context) (limit, offset int) {
	limit = 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 500 {
		limit = 500
	}
	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}

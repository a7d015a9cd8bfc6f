package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/coachline/coachline/internal/session"
	"github.com/gin-gonic/gin"
)

// getUserID extracts the signed-in user ID from the request session.
func getUserID(c *gin.Context) uint64 {
	return session.UserID(c)
}

// requireUserID writes 401 and returns false when the request is anonymous.
func requireUserID(c *gin.Context) (uint64, bool) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}
	return userID, true
}

// parseIDParam reads a positive numeric path parameter, writing 400 on failure.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

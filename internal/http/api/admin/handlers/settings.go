package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coachline/coachline/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SettingsHandler reads and writes runtime settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a settings handler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// List returns the stored rows, the effective snapshot, and the keys that
// may be written.
func (h *SettingsHandler) List(c *gin.Context) {
	rows, errRows := settings.Rows(c.Request.Context(), h.db)
	if errRows != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list settings failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rows":       rows,
		"settings":   settings.All(),
		"keys":       settings.Keys,
		"updated_at": settings.UpdatedAt(),
	})
}

// Put writes one setting. The body is {"value": <json>}.
func (h *SettingsHandler) Put(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if !settings.IsKnownKey(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown setting"})
		return
	}
	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil || len(body.Value) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}
	adminID, _ := readAdminIDFromContext(c)
	if errPut := settings.Put(c.Request.Context(), h.db, key, body.Value, adminID); errPut != nil {
		log.WithError(errPut).WithField("key", key).Error("admin: save setting failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
		return
	}
	log.WithFields(log.Fields{"admin_id": adminID, "key": key}).Info("admin: setting updated")
	c.JSON(http.StatusOK, gin.H{"key": key, "value": body.Value})
}

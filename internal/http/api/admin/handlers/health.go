package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HealthCheck is an optional dependency probed by Healthz.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	db     *gorm.DB
	checks []HealthCheck
}

// NewHealthHandler constructs a HealthHandler. The database is always
// checked; extra checks are reported by name.
func NewHealthHandler(db *gorm.DB, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{db: db, checks: checks}
}

// Healthz answers 200 when every dependency responds within two seconds,
// 503 otherwise, with a per-dependency status map.
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{}
	healthy := true
	record := func(name string, err error) {
		if err != nil {
			healthy = false
			status[name] = "down"
			log.WithError(err).WithField("check", name).Warn("health check failed")
			return
		}
		status[name] = "up"
	}

	sqlDB, errDB := h.db.DB()
	if errDB == nil {
		errDB = sqlDB.PingContext(ctx)
	}
	record("database", errDB)
	for _, check := range h.checks {
		if check.Probe == nil {
			continue
		}
		record(check.Name, check.Probe(ctx))
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ok": healthy, "checks": status})
}

package admin

import (
	"net/http"
	"sort"

	permissions "github.com/coachline/coachline/internal/http/api/admin/permissions"
	"github.com/coachline/coachline/internal/session"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// adminPermissionMiddleware refuses admin routes that have no entry in the
// permissions table, so a handler mounted without a declaration is never
// reachable. Successful writes are logged with the route label.
func adminPermissionMiddleware() gin.HandlerFunc {
	declared := permissions.DefinitionMap()

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		definition, ok := declared[permissions.Key(c.Request.Method, c.FullPath())]
		if !ok {
			fields := log.Fields{"method": c.Request.Method, "path": c.Request.URL.Path}
			if s := session.From(c); s != nil {
				fields["user_id"] = s.UserID
			}
			log.WithFields(fields).Warn("admin route not declared")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()

		if c.Request.Method == http.MethodGet || c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		log.WithFields(log.Fields{
			"admin_id": session.UserID(c),
			"action":   definition.Label,
			"module":   definition.Module,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
		}).Info("admin action")
	}
}

// permissionModule groups route definitions for the admin UI.
type permissionModule struct {
	Module string                   `json:"module"`
	Routes []permissions.Definition `json:"routes"`
}

// listPermissions returns the declared admin routes grouped by module.
func listPermissions(c *gin.Context) {
	byModule := map[string][]permissions.Definition{}
	for _, d := range permissions.Definitions() {
		byModule[d.Module] = append(byModule[d.Module], d)
	}
	modules := make([]permissionModule, 0, len(byModule))
	for name, routes := range byModule {
		modules = append(modules, permissionModule{Module: name, Routes: routes})
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Module < modules[j].Module })
	c.JSON(http.StatusOK, gin.H{"modules": modules, "total": len(permissions.Definitions())})
}

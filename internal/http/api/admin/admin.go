// Package admin wires the back-office API.
package admin

import (
	"github.com/coachline/coachline/internal/cache"
	"github.com/coachline/coachline/internal/config"
	internalhttp "github.com/coachline/coachline/internal/http"
	"github.com/coachline/coachline/internal/http/api/admin/handlers"
	"github.com/coachline/coachline/internal/media"
	"github.com/coachline/coachline/internal/models"
	"github.com/coachline/coachline/internal/quota"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the services the admin routes call into.
type Deps struct {
	DB           *gorm.DB
	JWT          config.JWTConfig
	Cache        cache.ProductCache
	Quota        *quota.Service
	Media        media.Store
	LoginLimiter *internalhttp.IPRateLimiter
}

// RegisterAdminRoutes registers the admin login and the admin-only API.
func RegisterAdminRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}
	db := deps.DB

	admin := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, deps.JWT)
	loginGroup := admin.Group("")
	if deps.LoginLimiter != nil {
		loginGroup.Use(deps.LoginLimiter.Middleware())
	}
	loginGroup.POST("/login", authHandler.Login)

	authed := admin.Group("")
	authed.Use(
		internalhttp.AuthMiddleware(db, deps.JWT.Secret),
		internalhttp.RequireRole(models.RoleAdmin),
		adminPermissionMiddleware(),
	)

	authed.GET("/me", authHandler.Me)
	authed.GET("/permissions", listPermissions)

	mfaHandler := handlers.NewMFAHandler(db)
	authed.GET("/mfa/status", mfaHandler.Status)
	authed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	dashboardHandler := handlers.NewDashboardHandler(db)
	authed.GET("/dashboard/kpi", dashboardHandler.KPI)
	authed.GET("/dashboard/top-products", dashboardHandler.TopProducts)

	productHandler := handlers.NewProductHandler(db, deps.Cache)
	authed.GET("/products", productHandler.List)
	authed.POST("/products", productHandler.Create)
	authed.GET("/products/:id", productHandler.Get)
	authed.PUT("/products/:id", productHandler.Update)
	authed.DELETE("/products/:id", productHandler.Delete)

	classHandler := handlers.NewClassHandler(db)
	authed.GET("/classes", classHandler.List)
	authed.POST("/classes", classHandler.Create)
	authed.GET("/classes/:id", classHandler.Get)
	authed.PUT("/classes/:id", classHandler.Update)
	authed.DELETE("/classes/:id", classHandler.Delete)
	authed.POST("/classes/:id/lessons", classHandler.CreateLesson)
	authed.PUT("/lessons/:id", classHandler.UpdateLesson)
	authed.DELETE("/lessons/:id", classHandler.DeleteLesson)

	planHandler := handlers.NewPlanHandler(db)
	authed.GET("/plans", planHandler.List)
	authed.POST("/plans", planHandler.Create)
	authed.PUT("/plans/:id", planHandler.Update)
	authed.DELETE("/plans/:id", planHandler.Delete)

	sliderHandler := handlers.NewSliderHandler(db)
	authed.GET("/sliders", sliderHandler.List)
	authed.POST("/sliders", sliderHandler.Create)
	authed.PUT("/sliders/:id", sliderHandler.Update)
	authed.DELETE("/sliders/:id", sliderHandler.Delete)

	mockTestHandler := handlers.NewMockTestHandler(db, deps.Quota)
	authed.GET("/mock-tests", mockTestHandler.List)
	authed.POST("/mock-tests", mockTestHandler.Create)
	authed.GET("/mock-tests/:id", mockTestHandler.Get)
	authed.PUT("/mock-tests/:id", mockTestHandler.Update)
	authed.DELETE("/mock-tests/:id", mockTestHandler.Delete)
	authed.GET("/mock-tests/:id/registrations", mockTestHandler.Registrations)
	authed.PUT("/registrations/:id", mockTestHandler.UpdateRegistration)

	userHandler := handlers.NewUserHandler(db)
	authed.GET("/users", userHandler.List)
	authed.PUT("/users/:id", userHandler.Update)
	authed.POST("/users/:id/access", userHandler.GrantAccess)

	orderHandler := handlers.NewOrderHandler(db)
	authed.GET("/orders", orderHandler.Orders)
	authed.GET("/purchases", orderHandler.Purchases)

	settingsHandler := handlers.NewSettingsHandler(db)
	authed.GET("/settings", settingsHandler.List)
	authed.PUT("/settings/:key", settingsHandler.Put)

	if deps.Media != nil {
		mediaHandler := handlers.NewMediaHandler(deps.Media)
		authed.POST("/media", mediaHandler.Upload)
		authed.DELETE("/media/*key", mediaHandler.Delete)
	}
}

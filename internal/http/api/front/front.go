package front

import (
	"github.com/coachline/coachline/internal/checkout"
	"github.com/coachline/coachline/internal/config"
	internalhttp "github.com/coachline/coachline/internal/http"
	"github.com/coachline/coachline/internal/http/api/front/handlers"
	"github.com/coachline/coachline/internal/quota"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the services the student-facing routes call into.
type Deps struct {
	DB           *gorm.DB
	JWT          config.JWTConfig
	Checkout     *checkout.Service
	Quota        *quota.Service
	LoginLimiter *internalhttp.IPRateLimiter
}

// RegisterFrontRoutes registers public and authenticated student routes.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}
	db := deps.DB

	front := r.Group("/v0/front")

	authHandler := handlers.NewAuthHandler(db, deps.JWT)
	loginGroup := front.Group("")
	if deps.LoginLimiter != nil {
		loginGroup.Use(deps.LoginLimiter.Middleware())
	}
	loginGroup.POST("/register", authHandler.Register)
	loginGroup.POST("/login", authHandler.Login)
	front.GET("/config", handlers.NewConfigHandler(deps.Checkout).Get)

	catalogHandler := handlers.NewCatalogHandler(db)
	front.GET("/sliders", catalogHandler.Sliders)
	front.GET("/plans", catalogHandler.Plans)
	front.GET("/products", catalogHandler.Products)
	front.GET("/products/:id", catalogHandler.Product)
	front.GET("/classes", catalogHandler.Classes)

	mockTestHandler := handlers.NewMockTestHandler(db, deps.Quota)
	front.GET("/mock-tests", mockTestHandler.List)

	authed := front.Group("")
	authed.Use(internalhttp.AuthMiddleware(db, deps.JWT.Secret))

	profileHandler := handlers.NewProfileHandler(db)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile/password", profileHandler.ChangePassword)
	authed.GET("/referral", profileHandler.Referral)
	authed.GET("/access", profileHandler.Access)

	authed.GET("/classes/:id", catalogHandler.Class)

	dashboardHandler := handlers.NewDashboardHandler(db)
	authed.GET("/dashboard/kpi", dashboardHandler.KPI)
	authed.GET("/dashboard/scores", dashboardHandler.ScoreHistory)

	checkoutHandler := handlers.NewCheckoutHandler(deps.Checkout)
	authed.POST("/checkout/preview", checkoutHandler.Preview)
	authed.POST("/checkout/orders", checkoutHandler.CreateOrder)
	authed.GET("/checkout/orders", checkoutHandler.Orders)
	authed.POST("/checkout/orders/:id/authorize", checkoutHandler.Authorize)
	authed.POST("/checkout/orders/:id/cancel", checkoutHandler.Cancel)
	authed.POST("/checkout/verify", checkoutHandler.Verify)
	authed.POST("/checkout/purchase", checkoutHandler.Purchase)
	authed.GET("/checkout/purchases", checkoutHandler.Purchases)

	authed.POST("/mock-tests/:id/register", mockTestHandler.Register)
	authed.GET("/mock-tests/:id/status", mockTestHandler.Status)
	authed.POST("/mock-tests/:id/attempts", mockTestHandler.Start)
	authed.GET("/attempts", mockTestHandler.Attempts)
	authed.GET("/attempts/:attemptID", mockTestHandler.Attempt)
	authed.POST("/attempts/:attemptID/submit", mockTestHandler.Submit)
}

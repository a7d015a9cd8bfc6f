// Package app boots the server and the maintenance commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coachline/coachline/internal/cache"
	"github.com/coachline/coachline/internal/checkout"
	"github.com/coachline/coachline/internal/config"
	"github.com/coachline/coachline/internal/db"
	"github.com/coachline/coachline/internal/events"
	"github.com/coachline/coachline/internal/gateway"
	internalhttp "github.com/coachline/coachline/internal/http"
	"github.com/coachline/coachline/internal/http/api/admin"
	adminhandlers "github.com/coachline/coachline/internal/http/api/admin/handlers"
	"github.com/coachline/coachline/internal/http/api/front"
	"github.com/coachline/coachline/internal/logging"
	"github.com/coachline/coachline/internal/media"
	"github.com/coachline/coachline/internal/metrics"
	"github.com/coachline/coachline/internal/models"
	"github.com/coachline/coachline/internal/quota"
	"github.com/coachline/coachline/internal/referral"
	"github.com/coachline/coachline/internal/security"
	"github.com/coachline/coachline/internal/settings"
	"github.com/coachline/coachline/internal/util"
	"github.com/coachline/coachline/internal/webui"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// CreateAdminParams holds inputs for admin account creation.
type CreateAdminParams struct {
	Username string
	Password string
	Name     string
	Email    string
}

// openDatabase loads the config file and opens the configured database.
func openDatabase(cfg config.AppConfig) (*config.Config, *gorm.DB, error) {
	path := config.ResolveConfigPath(cfg.ConfigPath)
	if !config.ConfigExists(path) {
		log.Warnf("config file %s not found, using environment and defaults", path)
	}
	conf, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(conf.Database.DSN, db.Options{MaxOpenConns: conf.Database.MaxOpenConns})
	if err != nil {
		return nil, nil, err
	}
	return conf, conn, nil
}

func closeDatabase(conn *gorm.DB) {
	if sqlDB, errDB := conn.DB(); errDB == nil {
		_ = sqlDB.Close()
	}
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	_, conn, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// CreateAdmin creates an active admin account.
func CreateAdmin(ctx context.Context, cfg config.AppConfig, params CreateAdminParams) (*models.User, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if errValidate := security.ValidatePassword(params.Password); errValidate != nil {
		return nil, errValidate
	}

	_, conn, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}

	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; errCount != nil {
		return nil, fmt.Errorf("check username: %w", errCount)
	}
	if count > 0 {
		return nil, fmt.Errorf("user %q already exists", username)
	}

	hash, err := security.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, err := referral.NewCode(ctx, conn)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username:     username,
		Name:         strings.TrimSpace(params.Name),
		Email:        strings.TrimSpace(params.Email),
		Password:     hash,
		Role:         models.RoleAdmin,
		Active:       true,
		ReferralCode: code,
	}
	if errCreate := conn.WithContext(ctx).Create(&user).Error; errCreate != nil {
		return nil, fmt.Errorf("create admin: %w", errCreate)
	}
	return &user, nil
}

// Services are the long-lived components the HTTP routes depend on.
type Services struct {
	Config   *config.Config
	DB       *gorm.DB
	Cache    cache.ProductCache
	Checkout *checkout.Service
	Quota    *quota.Service
	Media    media.Store
	WebUI    *webui.Bundle
}

// RunServer boots the HTTP server and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	conf, conn, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(conn)

	logCloser, err := logging.Setup(conf.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()
	if conf.Server.Mode != "" {
		gin.SetMode(conf.Server.Mode)
	}

	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSettings := settings.Refresh(ctx, conn); errSettings != nil {
		return errSettings
	}

	var productCache cache.ProductCache = cache.Noop{}
	if conf.Redis.Addr != "" {
		redisCache, errRedis := cache.NewRedis(ctx, cache.Options{
			Addr:     conf.Redis.Addr,
			Username: conf.Redis.Username,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
			TTL:      conf.Redis.TTL,
		})
		if errRedis != nil {
			log.WithError(errRedis).Warn("product cache disabled")
		} else {
			productCache = redisCache
			defer func() { _ = redisCache.Close() }()
		}
	}

	var publisher events.Publisher = events.Noop{}
	if conf.AMQP.URL != "" {
		amqpPublisher, errDial := events.Dial(conf.AMQP.URL, conf.AMQP.Exchange)
		if errDial != nil {
			log.WithError(errDial).Warn("purchase events disabled")
		} else {
			publisher = amqpPublisher
			defer func() { _ = amqpPublisher.Close() }()
		}
	}

	store, err := media.New(ctx, conf.Storage)
	if err != nil {
		return err
	}

	svc := Services{
		Config: conf,
		DB:     conn,
		Cache:  productCache,
		Checkout: checkout.NewService(conn,
			gateway.NewClient(conf.Payment.KeyID, conf.Payment.KeySecret, conf.Payment.BaseURL),
			checkout.WithCache(productCache),
			checkout.WithPublisher(publisher),
			checkout.WithCurrency(conf.Payment.Currency),
		),
		Quota: quota.NewService(conn, conf.Checkout.BuyNowURL),
		Media: store,
	}
	if !conf.Server.WebUIDisabled {
		bundle, errLoad := webui.Load()
		if errLoad != nil {
			return errLoad
		}
		svc.WebUI = &bundle
	}

	checkout.NewOrderSweeper(conn, conf.Checkout.SweepInterval).Start(ctx)
	log.Infof("payment gateway key=%s currency=%s", util.HideSecret(conf.Payment.KeyID), conf.Payment.Currency)

	server := &http.Server{
		Addr:         conf.Server.Addr,
		Handler:      NewEngine(svc),
		ReadTimeout:  conf.Server.ReadTimeout,
		WriteTimeout: conf.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", conf.Server.Addr)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// NewEngine builds the gin engine with every route mounted.
func NewEngine(svc Services) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), logging.RequestLogger(), metrics.Middleware())

	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	var healthChecks []adminhandlers.HealthCheck
	if pinger, ok := svc.Cache.(interface{ Ping(context.Context) error }); ok {
		healthChecks = append(healthChecks, adminhandlers.HealthCheck{Name: "redis", Probe: pinger.Ping})
	}
	engine.GET("/healthz", adminhandlers.NewHealthHandler(svc.DB, healthChecks...).Healthz)

	var serverCfg config.ServerConfig
	var jwtCfg config.JWTConfig
	var storageCfg config.StorageConfig
	if svc.Config != nil {
		serverCfg = svc.Config.Server
		jwtCfg = svc.Config.JWT
		storageCfg = svc.Config.Storage
	}

	front.RegisterFrontRoutes(engine, front.Deps{
		DB:           svc.DB,
		JWT:          jwtCfg,
		Checkout:     svc.Checkout,
		Quota:        svc.Quota,
		LoginLimiter: internalhttp.NewIPRateLimiter(serverCfg.LoginRPM, serverCfg.LoginBurst),
	})
	admin.RegisterAdminRoutes(engine, admin.Deps{
		DB:           svc.DB,
		JWT:          jwtCfg,
		Cache:        svc.Cache,
		Quota:        svc.Quota,
		Media:        svc.Media,
		LoginLimiter: internalhttp.NewIPRateLimiter(serverCfg.LoginRPM, serverCfg.LoginBurst),
	})

	if local, ok := svc.Media.(*media.Local); ok && strings.HasPrefix(storageCfg.PublicURL, "/") {
		engine.Static(strings.TrimRight(storageCfg.PublicURL, "/"), local.Root())
	}

	if svc.WebUI != nil {
		svc.WebUI.Mount(engine, isAPIRoute)
	} else {
		engine.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		})
	}
	return engine
}

// isAPIRoute reports whether a path targets API endpoints.
func isAPIRoute(requestPath string) bool {
	for _, exact := range []string{"/healthz", "/metrics"} {
		if requestPath == exact || strings.HasPrefix(requestPath, exact+"/") {
			return true
		}
	}
	return requestPath == "/v0" || strings.HasPrefix(requestPath, "/v0/")
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qrforge/qrforge/internal/auth"
	"github.com/qrforge/qrforge/internal/config"
	"github.com/qrforge/qrforge/internal/credentials"
	"github.com/qrforge/qrforge/internal/handler"
	"github.com/qrforge/qrforge/internal/metrics"
	"github.com/qrforge/qrforge/internal/middleware"
	"github.com/qrforge/qrforge/internal/models"
	"github.com/qrforge/qrforge/internal/qr"
	"github.com/qrforge/qrforge/internal/ratelimit"
	"github.com/qrforge/qrforge/internal/repository"
	"github.com/qrforge/qrforge/internal/service"
	"github.com/qrforge/qrforge/internal/storage"
	"github.com/qrforge/qrforge/internal/usage"
	"github.com/qrforge/qrforge/internal/webhook"
	"github.com/rs/zerolog/log"
)

type Server struct {
	router        *gin.Engine
	config        *config.Config
	redis         *storage.RedisClient
	postgres      *storage.Postgres
	store         *credentials.Store
	authenticator *auth.Authenticator
	limiter       *ratelimit.SlidingWindow
	receiver      *webhook.Receiver
	tracker       *usage.Tracker
	qrHandler     *handler.QRHandler
	webhookH      *handler.WebhookHandler
	usageH        *handler.UsageHandler
	adminH        *handler.AdminHandler
	httpServer    *http.Server
}

// New wires the service. postgres and redis may be nil; the core runs
// entirely in-memory without them.
func New(cfg *config.Config, postgres *storage.Postgres, redis *storage.RedisClient) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limits := cfg.Limits()

	var accountRepo *repository.AccountRepository
	var analytics *service.AnalyticsService
	var adminAuth *service.AdminAuthService
	if postgres != nil {
		accountRepo = repository.NewAccountRepository(postgres)

		logRepo := repository.NewRequestLogRepository(postgres)
		analytics = service.NewAnalyticsService(logRepo)
		middleware.InitRequestLogger(logRepo, 1000)

		if cfg.Secrets.JWTSecret != "" {
			adminAuth = service.NewAdminAuthService(
				repository.NewUserRepository(postgres),
				cfg.Secrets.JWTSecret,
				cfg.Secrets.JWTExpiryHours,
			)
		}
	}

	store := credentials.NewStore(limits, accountRepo)
	if err := store.Load(context.Background()); err != nil {
		return nil, err
	}

	if postgres != nil && adminAuth != nil && cfg.Secrets.AdminEmail != "" && cfg.Secrets.AdminPassword != "" {
		if err := adminAuth.EnsureAdmin(context.Background(), cfg.Secrets.AdminEmail, cfg.Secrets.AdminPassword); err != nil {
			log.Error().Err(err).Msg("failed to provision admin user")
		}
	}

	authenticator := auth.New(
		store,
		limits,
		cfg.Anonymous.Enabled,
		models.Tier(cfg.Anonymous.Tier),
		cfg.Secrets.IdentitySalt,
	)

	limiter := ratelimit.NewSlidingWindow(longestWindow(limits))
	tracker := usage.NewTracker()
	receiver := webhook.New(store, limiter, cfg.Secrets.WebhookSecret)

	s := &Server{
		router:        gin.New(),
		config:        cfg,
		redis:         redis,
		postgres:      postgres,
		store:         store,
		authenticator: authenticator,
		limiter:       limiter,
		receiver:      receiver,
		tracker:       tracker,
		qrHandler:     handler.NewQRHandler(authenticator, tracker, redis),
		webhookH:      handler.NewWebhookHandler(receiver),
		usageH:        handler.NewUsageHandler(tracker),
		adminH:        handler.NewAdminHandler(adminAuth, analytics, store, limiter, tracker),
	}

	s.setupMiddleware()
	s.setupRoutes(adminAuth)

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	if s.postgres != nil {
		s.router.Use(middleware.RequestLogger())
	}
}

func (s *Server) setupRoutes(adminAuth *service.AdminAuthService) {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/styles", s.qrHandler.ListStyles)
	s.router.GET("/metrics", metrics.Handler())

	// Webhook authenticates with its signature, not an API key.
	s.router.POST("/webhook/account", s.webhookH.Handle)

	authed := s.router.Group("/")
	authed.Use(middleware.Authenticate(s.authenticator))

	// The usage endpoint is authenticated but not charged against quota.
	authed.GET("/usage", s.usageH.Get)

	generate := authed.Group("/")
	generate.Use(middleware.RateLimit(s.limiter, s.authenticator, middleware.CostOne))
	{
		generate.POST("/qr", s.qrHandler.CreateBasic)
		generate.POST("/qr/logo", s.qrHandler.CreateLogo)
		generate.POST("/qr/text", s.qrHandler.CreateText)
		generate.POST("/qr/artistic", s.qrHandler.CreateArtistic)
		generate.POST("/qr/qart", s.qrHandler.CreateQArt)
		generate.POST("/embed", s.qrHandler.CreateEmbed)
	}

	// Batch admission charges one slot per uploaded file, atomically.
	batch := authed.Group("/")
	batch.Use(middleware.RateLimit(s.limiter, s.authenticator, middleware.CostMultipartFiles("backgrounds")))
	batch.POST("/batch/embed", s.qrHandler.BatchEmbed)

	admin := s.router.Group("/admin")
	admin.POST("/login", s.adminH.Login)
	if adminAuth != nil {
		protected := admin.Group("/")
		protected.Use(middleware.RequireAdmin(adminAuth))
		{
			protected.GET("/accounts", s.adminH.ListAccounts)
			protected.GET("/status", s.adminH.Status)
			protected.GET("/analytics", s.adminH.Analytics)
			protected.GET("/logs", s.adminH.Logs)
		}
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := gin.H{}

	if s.redis != nil {
		healthy := s.redis.Ping(c.Request.Context()) == nil
		checks["redis"] = healthy
		if !healthy {
			status = "degraded"
		}
	}

	if s.postgres != nil {
		healthy := s.postgres.Ping(c.Request.Context()) == nil
		checks["database"] = healthy
		if !healthy {
			status = "degraded"
		}
	}

	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "qrforge",
		"styles":    qr.AllStyles,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	log.Info().Str("addr", addr).Str("environment", s.config.Server.Environment).Msg("starting qrforge")

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func longestWindow(limits map[models.Tier]models.TierLimits) time.Duration {
	var longest time.Duration
	for _, l := range limits {
		if w := l.Window(); w > longest {
			longest = w
		}
	}
	return longest
}

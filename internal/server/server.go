package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scribeflow/scribeflow/internal/config"
	"github.com/scribeflow/scribeflow/internal/service"
	"github.com/scribeflow/scribeflow/internal/service/generation"
	"github.com/scribeflow/scribeflow/internal/service/platform"
	"github.com/scribeflow/scribeflow/internal/service/platform/webflow"
	"github.com/scribeflow/scribeflow/internal/service/platform/wordpress"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Auth       *service.AuthService
	Queue      *service.QueueService
	Bridge     *service.StatusBridge
	Publishing *service.PublishingService
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	monitoring := service.NewMonitoringService(db, logger)
	materializer := service.NewMaterializer(db, logger)
	queueService := service.NewQueueService(db, logger, materializer, monitoring)

	backend := generation.NewHTTPClient(&cfg.Generation, logger)
	pollInterval, err := time.ParseDuration(cfg.Stream.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid stream poll interval: %w", err)
	}
	streamTimeout, err := time.ParseDuration(cfg.Stream.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid stream timeout: %w", err)
	}
	bridge := service.NewStatusBridge(queueService, backend, logger, pollInterval, streamTimeout)

	registry := platform.NewRegistry(logger)
	if cfg.Publisher.Webflow.Enabled {
		if err := registry.Register(webflow.NewClient(&cfg.Publisher.Webflow, logger)); err != nil {
			return nil, fmt.Errorf("failed to register webflow client: %w", err)
		}
	}
	if cfg.Publisher.WordPress.Enabled {
		if err := registry.Register(wordpress.NewClient(&cfg.Publisher.WordPress, logger)); err != nil {
			return nil, fmt.Errorf("failed to register wordpress client: %w", err)
		}
	}
	publishing := service.NewPublishingService(db, logger, registry, monitoring)

	// Create router
	router := gin.New()

	// Create server
	srv := &Server{
		Config:     cfg,
		DB:         db,
		Router:     router,
		Logger:     logger,
		Auth:       service.NewAuthService(logger, cfg.Auth.JWTSecret),
		Queue:      queueService,
		Bridge:     bridge,
		Publishing: publishing,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1")
	api.Use(s.Auth.Middleware())
	{
		// Queue routes
		queue := api.Group("/queue")
		{
			queue.POST("", s.handleCreateQueueItem)
			queue.GET("/:id", s.handleGetQueueItem)
			queue.PATCH("/:id", s.handlePatchQueueItem)
			queue.DELETE("/:id", s.Auth.RequireRole(service.RoleOwner, service.RoleManager), s.handleDeleteQueueItem)
			queue.GET("/:id/status", s.handleQueueStatusStream)
		}

		// Publishing routes
		publishing := api.Group("/publishing")
		publishing.Use(s.Auth.RequireRole(service.RoleOwner, service.RoleManager))
		{
			publishing.POST("", s.handleCreatePublishing)
			publishing.POST("/:id/retry", s.handleRetryPublishing)
			publishing.POST("/:id/unpublish", s.handleUnpublish)
			publishing.POST("/:id/update", s.handleUpdatePublishing)
			publishing.POST("/:id/republish", s.handleRepublish)
			publishing.POST("/:id/delete-from-platform", s.handleDeleteFromPlatform)
		}
	}
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}

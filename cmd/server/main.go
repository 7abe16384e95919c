package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"property-agent/internal/config"
	"property-agent/internal/handler"
	"property-agent/internal/logger"
	"property-agent/internal/repository"
	"property-agent/internal/service"
	"property-agent/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration; missing credentials are fatal
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	appLog.Info("starting "+cfg.App.Name, map[string]interface{}{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
		"debug":      cfg.App.Debug,
	})
	for _, warning := range cfg.Warnings {
		appLog.Warn("configuration fallback", map[string]interface{}{"detail": warning})
	}

	gin.SetMode(cfg.Server.GinMode)

	// Initialize database connection
	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		appLog.WithError(err).Error("failed to connect to database", nil)
		os.Exit(1)
	}
	defer repo.Close()
	appLog.Info("✅ Connected to PostgreSQL database", nil)

	store, err := newSessionStore(cfg, appLog)
	if err != nil {
		appLog.WithError(err).Error("failed to initialize session store", nil)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize services
	extractor := service.NewOpenAIExtractor(&cfg.OpenAI, appLog)
	normalizer := service.NewNormalizer(extractor, appLog)
	dialog := service.NewDialogController(normalizer, store, repo, service.DialogConfig{
		MaxResults:    cfg.Search.MaxResults,
		SearchTimeout: cfg.Search.Timeout,
	}, appLog)
	appLog.Info("✅ Services initialized", map[string]interface{}{
		"api_base":    cfg.OpenAI.APIBase,
		"model":       cfg.OpenAI.Model,
		"temperature": cfg.OpenAI.Temperature,
		"max_results": cfg.Search.MaxResults,
	})

	agentHandler := handler.NewAgentHandler(dialog)

	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) == 0 || cfg.Server.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{
			"status":  "healthy",
			"service": cfg.App.Name,
			"version": Version,
		}

		if n, err := dialog.ActiveSessions(c.Request.Context()); err == nil {
			body["active_sessions"] = n
		} else {
			body["status"] = "degraded"
			body["session_store"] = err.Error()
		}
		if err := repo.Ping(c.Request.Context()); err != nil {
			body["status"] = "degraded"
			body["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, body)
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	apiV1 := router.Group("/api/v1")
	agentHandler.RegisterRoutes(apiV1.Group("/agent"))

	setupStaticFiles(router, cfg.Server.StaticDir, appLog)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		appLog.Info("🚀 Starting server", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.WithError(err).Error("failed to start server", nil)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("🛑 Shutting down server...", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.WithError(err).Error("forced shutdown", nil)
	}
	appLog.Info("✅ Server stopped", nil)
}

// newSessionStore builds the configured conversation store
func newSessionStore(cfg *config.Config, appLog logger.Logger) (session.Store, error) {
	optionalAllowed := cfg.Search.MaxOptionalFilters

	switch cfg.Session.Backend {
	case "redis":
		store := session.NewRedisStore(session.NewRedisClient(cfg.Redis), cfg.Redis.KeyPrefix, optionalAllowed)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, err
		}
		appLog.Info("✅ Using Redis session store", map[string]interface{}{"addr": cfg.Redis.Address})
		return store, nil
	default:
		appLog.Info("Using in-memory session store", nil)
		return session.NewMemoryStore(optionalAllowed), nil
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/josh-segal/text-me-assistant/internal/cache"
	"github.com/josh-segal/text-me-assistant/internal/config"
	"github.com/josh-segal/text-me-assistant/internal/db"
	"github.com/josh-segal/text-me-assistant/internal/handlers"
	"github.com/josh-segal/text-me-assistant/internal/services"
	"github.com/josh-segal/text-me-assistant/internal/sms"
	"github.com/josh-segal/text-me-assistant/pkg/logger"
	"github.com/josh-segal/text-me-assistant/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	serviceName     = "text-me-assistant"
	maxRequestBytes = 1 << 20
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// app holds the services the routes are built from
type app struct {
	messages    *services.MessageService
	escalations *services.EscalationService
	classifier  services.Classifier
	auth        *services.AuthService
	verifier    handlers.SignatureVerifier
}

// SetupServer initializes and returns a configured HTTP server together with
// a cleanup func that closes storage and cache connections. Call cleanup only
// after the server has shut down; it is safe to call more than once.
func SetupServer(cfg *config.Config) (*http.Server, func(), error) {
	if cfg == nil {
		return nil, nil, errors.New("configuration is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	store, err := db.NewStore(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	escalationCache, redisClient, err := newEscalationCache(ctx, cfg)
	if err != nil {
		closeQuietly("database", store.Close)
		return nil, nil, err
	}

	sender, err := newSender(cfg)
	if err != nil {
		closeQuietly("database", store.Close)
		if redisClient != nil {
			closeQuietly("redis", redisClient.Close)
		}
		return nil, nil, fmt.Errorf("failed to initialize SMS sender: %w", err)
	}

	classifier := services.NewKeywordClassifier(nil)
	escalations := services.NewEscalationService(sender, escalationCache, cfg.Escalation.ManagerNumber, cfg.Escalation.Cooldown)

	a := &app{
		messages:    services.NewMessageService(store, classifier, services.NewFAQResponder(nil, nil), escalations, cfg.Twilio.PhoneNumber),
		escalations: escalations,
		classifier:  classifier,
		auth:        services.NewAuthService(cfg.Admin.Username, cfg.Admin.PasswordHash, cfg.Admin.TOTPSecret),
	}
	if cfg.Twilio.ValidateSignature && !cfg.IsDevelopment() {
		a.verifier = sms.NewSignatureValidator(cfg.Twilio.AuthToken)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.ForceHTTPS {
		router.Use(middleware.HTTPSRedirectMiddleware())
	}
	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.AuditLogMiddleware(),
		middleware.SecurityHeadersMiddleware(),
		middleware.CORSMiddleware(),
		middleware.RequestSizeLimitMiddleware(maxRequestBytes),
	)

	setupRoutes(router, cfg, a)

	// Create server with security timeouts
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			closeQuietly("database", store.Close)
			if redisClient != nil {
				closeQuietly("redis", redisClient.Close)
			}
		})
	}

	return srv, cleanup, nil
}

// newEscalationCache returns the Redis cache when an address is configured,
// otherwise the in-process one
func newEscalationCache(ctx context.Context, cfg *config.Config) (cache.EscalationCache, *redis.Client, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("Using in-memory escalation cache")
		return cache.NewMemoryEscalationCache(), nil, nil
	}

	client, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	return cache.NewEscalationCache(client), client, nil
}

func newSender(cfg *config.Config) (sms.Sender, error) {
	if cfg.IsDevelopment() {
		logger.Info("Development mode: outbound SMS is mocked")
		return sms.NewMockSender(), nil
	}
	return sms.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber)
}

func closeQuietly(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Warn("Failed to close "+name, zap.Error(err))
	}
}

// setupRoutes configures all the HTTP routes
func setupRoutes(router *gin.Engine, cfg *config.Config, a *app) {
	smsHandler := handlers.NewSMSHandler(a.messages, a.verifier, cfg.Server.PublicURL)
	authHandler := handlers.NewAuthHandler(cfg, a.auth)
	escalationHandler := handlers.NewEscalationHandler(a.escalations)
	messageHandler := handlers.NewMessageHandler(a.messages, a.classifier)

	router.GET("/health", handleHealthCheck)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	// Public endpoints
	router.POST("/api/sms/webhook", smsHandler.Webhook)
	router.POST("/api/auth/login", authHandler.Login)

	// Operator endpoints
	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(cfg), middleware.RequireRole(middleware.RoleAdmin))
	{
		protected.POST("/escalations", escalationHandler.Create)
		protected.GET("/escalations/recent", escalationHandler.Recent)
		protected.GET("/messages", messageHandler.List)
		protected.GET("/messages/:id", messageHandler.Get)
		protected.POST("/classify", messageHandler.Classify)
	}
}

// handleHealthCheck handles the health check endpoint
func handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"version": version,
		"service": serviceName,
	})
}

// StartServer starts the HTTP server and shuts it down on SIGINT or SIGTERM
func StartServer(srv *http.Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return StartServerWithContext(ctx, srv)
}

// StartServerWithContext starts the HTTP server with a context for shutdown control
func StartServerWithContext(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

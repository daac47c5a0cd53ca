package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	v1 "faaxis/internal/app/handler/v1"
	chiMiddleware "faaxis/internal/app/middleware"
	"faaxis/internal/app/model/api"
	"faaxis/internal/app/repo"
	"faaxis/internal/client/email"
	"faaxis/internal/config"
	"faaxis/internal/service"
	"faaxis/internal/utils"
)

// @title FA Axis Auth API
// @version 1.0
// @description Session, token and admin step-up authentication for FA Axis

// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup logger
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
	}).Info("Starting FA Axis auth service")

	// Setup database
	db, err := setupDatabase(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to setup database: %v", err)
	}
	defer db.Close()

	// Setup Redis
	redisClient, err := setupRedis(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to setup Redis: %v", err)
	}
	defer redisClient.Close()

	// Setup dependencies
	userRepo := repo.NewUserRepository(db)
	redisRepo := repo.NewRedisRepository(redisClient)

	emailClient := email.NewClient(email.Options{
		BaseURL:         cfg.Email.ServiceURL,
		Timeout:         cfg.Email.Timeout,
		RetryCount:      cfg.Email.RetryCount,
		BreakerFailures: cfg.Email.BreakerFailures,
		BreakerTimeout:  cfg.Email.BreakerTimeout,
	}, logger)

	tokenManager := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TokenTTL, cfg.JWT.Issuer)
	totpManager := utils.NewTOTPManager(cfg.App.Name)

	// Create service
	serviceConfig := &service.Config{
		SessionTTL:           cfg.Session.TTL,
		OTPLength:            cfg.App.OTPLength,
		OTPTTL:               cfg.App.OTPTTL,
		OTPMaxAttempts:       cfg.App.OTPMaxAttempts,
		ResetTokenTTL:        cfg.App.ResetTokenTTL,
		VerificationTokenTTL: cfg.App.VerificationTokenTTL,
		BaseURL:              cfg.App.BaseURL,
	}

	authService := service.NewAuthService(
		userRepo,
		redisRepo,
		emailClient,
		tokenManager,
		totpManager,
		logger,
		serviceConfig,
	)

	// Setup router
	router := setupRouter(cfg, authService, tokenManager, db, redisClient, logger)

	// Setup HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

func setupDatabase(cfg *config.Config, logger *logrus.Logger) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN())))
	db := bun.NewDB(sqldb, pgdialect.New())

	// Add query hook for debugging in development
	if cfg.App.Environment == "development" {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Database connected successfully")
	return db, nil
}

func setupRedis(cfg *config.Config, logger *logrus.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connected successfully")
	return client, nil
}

func setupRouter(
	cfg *config.Config,
	authService service.AuthService,
	tokenManager *utils.TokenManager,
	db *bun.DB,
	redisClient *redis.Client,
	logger *logrus.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Setup middleware
	loggingMiddleware := chiMiddleware.NewChiLoggingMiddleware(logger)

	r.Use(chiMiddleware.RequestID())
	r.Use(loggingMiddleware.Logger())
	r.Use(loggingMiddleware.Recovery())
	r.Use(chiMiddleware.CORS(cfg.Server.CORSAllowedOrigins))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "healthy"
		if err := db.PingContext(ctx); err != nil {
			status = "degraded"
		} else if err := redisClient.Ping(ctx).Err(); err != nil {
			status = "degraded"
		}
		if status != "healthy" {
			render.Status(r, http.StatusServiceUnavailable)
		}

		render.JSON(w, r, &api.HealthResponse{
			Status:  status,
			Service: "faaxis-auth",
			Version: "1.0.0",
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	authHandler := v1.NewAuthHandler(authService, v1.CookieConfig{
		SessionName: cfg.Session.CookieName,
		TokenName:   cfg.Session.TokenCookieName,
		MaxAge:      cfg.Session.TTL,
		TokenMaxAge: tokenManager.TTL(),
		Secure:      cfg.Session.CookieSecure,
	}, logger)
	authHandler.RegisterRoutes(r, chiMiddleware.RateLimitByIP(cfg.Server.RateLimitRequests, cfg.Server.RateLimitWindow))

	return r
}

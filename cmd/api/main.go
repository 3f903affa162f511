package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "sintonia/docs" // This is for Swagger
	"sintonia/internal/auth"
	"sintonia/internal/config"
	"sintonia/internal/database"
	"sintonia/internal/email"
	"sintonia/internal/handlers"
	"sintonia/internal/logger"
	"sintonia/internal/middleware"
	"sintonia/internal/repository"
	"sintonia/internal/scheduler"
	"sintonia/internal/service"
	"sintonia/internal/telemetry"
	"sintonia/internal/vault"
)

// @title Sintonia API
// @version 1.0
// @description Backend API for clinical questionnaires, their review and invalidation workflow, and the patient forum

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}
	if cfg.Telemetry.Endpoint != "" {
		slog.Info("Tracing enabled", "endpoint", cfg.Telemetry.Endpoint)
	}

	// Initialize database
	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	migrator := database.NewMigrationExecutor(db.DB)
	if err := migrator.RunMigrations(ctx, cfg.Database.MigrationsPath); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Answers at rest: Vault transit when enabled, plain JSON otherwise
	healthChecks := []handlers.HealthCheck{{Name: "database", Check: db.HealthCheck}}
	var sealer vault.Sealer = vault.PlainSealer{}
	if cfg.Vault.Enabled {
		slog.Info("Vault is enabled - sealing questionnaire answers")
		vaultClient, err := vault.NewClient(ctx, &vault.Config{
			Address:      cfg.Vault.Address,
			Token:        cfg.Vault.Token,
			TransitMount: cfg.Vault.TransitMount,
		})
		if err != nil {
			slog.Error("Failed to initialize Vault client", "error", err)
			os.Exit(1)
		}
		transit, err := vault.NewTransitSealer(ctx, vaultClient, cfg.Vault.AnswersKey)
		if err != nil {
			slog.Error("Failed to prepare answers key", "key", cfg.Vault.AnswersKey, "error", err)
			os.Exit(1)
		}
		sealer = transit
		healthChecks = append(healthChecks, handlers.HealthCheck{Name: "vault", Check: vaultClient.Health})
	} else {
		slog.Warn("Vault is disabled - questionnaire answers are stored unencrypted")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	auditRepo := repository.NewAuditRepository(db.DB)
	questionnaireRepo := repository.NewQuestionnaireRepository(db.DB)
	invalidationRepo := repository.NewInvalidationRepository(db.DB)
	forumRepo := repository.NewForumRepository(db.DB)
	alertRepo := repository.NewAlertRepository(db.DB)

	// Initialize services
	authService := auth.NewService(&cfg.JWT)
	emailService := email.NewService(&cfg.Email)
	if !cfg.Email.Enabled() {
		slog.Warn("SMTP_HOST is not set - emails are logged instead of sent")
	}

	auditSvc := service.NewAuditService(auditRepo)
	alertSvc := service.NewAlertService(alertRepo, userRepo, auditSvc, emailService, service.Async)
	authSvc := service.NewAuthService(userRepo, sessionRepo, authService, auditSvc)
	profileSvc := service.NewProfileService(userRepo, sessionRepo, authService, auditSvc)
	rosterSvc := service.NewRosterService(userRepo, sessionRepo, authService, auditSvc)
	questionnaireSvc := service.NewQuestionnaireService(questionnaireRepo, invalidationRepo, userRepo, sealer, alertSvc, auditSvc)
	workflowSvc := service.NewWorkflowService(questionnaireRepo, invalidationRepo, userRepo, auditSvc, emailService, service.Async)
	forumSvc := service.NewForumService(forumRepo, auditSvc)

	// Seed the first admin on an empty installation
	if cfg.Bootstrap.AdminEmail != "" {
		admin, err := authSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword)
		if err != nil {
			slog.Error("Failed to bootstrap admin account", "error", err)
			os.Exit(1)
		}
		if admin != nil {
			slog.Info("Bootstrap admin account created", "email", admin.Email)
		}
	}

	// Start scheduler
	sched := scheduler.NewScheduler(userRepo, invalidationRepo, alertRepo, authSvc, emailService, &cfg.Scheduler)
	sched.Start()
	defer sched.Stop()

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(authSvc)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	defer rateLimiter.Stop()

	// Setup routes
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, &handlers.Handlers{
		Auth:          handlers.NewAuthHandler(authSvc, cfg),
		Profile:       handlers.NewProfileHandler(profileSvc, authSvc),
		Questionnaire: handlers.NewQuestionnaireHandler(questionnaireSvc),
		Workflow:      handlers.NewWorkflowHandler(workflowSvc),
		Forum:         handlers.NewForumHandler(forumSvc),
		Alert:         handlers.NewAlertHandler(alertSvc),
		User:          handlers.NewUserHandler(rosterSvc),
		Audit:         handlers.NewAuditHandler(auditSvc),
		Config:        handlers.NewConfigHandler(cfg, healthChecks...),
	}, authMw)

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := telemetry.Middleware(
		middleware.LoggingMiddleware(
			middleware.SecurityHeaders(
				corsMw.Handler(
					rateLimiter.Limit(mux),
				),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a failed listener
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
	}

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("Failed to flush traces", "error", err)
	}

	slog.Info("Server stopped", "uptime", time.Since(startedAt).Round(time.Second))
}

var startedAt = time.Now()

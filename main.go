package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/onurcolak/sms-dispatch-service/environments"
	"github.com/onurcolak/sms-dispatch-service/handlers"
	"github.com/onurcolak/sms-dispatch-service/internal/app"
	"github.com/onurcolak/sms-dispatch-service/internal/middlewares"
	"github.com/onurcolak/sms-dispatch-service/internal/observability"
	"github.com/onurcolak/sms-dispatch-service/pkg/database"
	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
	"github.com/onurcolak/sms-dispatch-service/pkg/validator"
	"github.com/onurcolak/sms-dispatch-service/routes"

	_ "github.com/onurcolak/sms-dispatch-service/docs" // swagger docs
)

// @title SMS Dispatch Service API
// @version 1.0
// @description Multi-carrier SMS dispatch with campaigns and autoresponders

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @schemes http https
func main() {
	// Load config
	cfg := environments.Load()

	logger.Init(cfg.Log.Format, cfg.Log.Level)

	// Hard-fail if required secrets are missing
	if cfg.Auth.MessagesAPIKey == "" {
		logger.Fatalf("MESSAGES_API_KEY is required but not set")
	}
	if cfg.Auth.SchedulerAPIKey == "" {
		logger.Fatalf("SCHEDULER_API_KEY is required but not set")
	}

	logger.Infof("Starting SMS Dispatch Service...")

	observability.Register(prometheus.DefaultRegisterer)

	a, err := app.New(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize application: %v", err)
	}

	// Run migrations
	if err := database.RunMigrations(a.DB); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize handlers
	h := routes.Handlers{
		Health:        handlers.NewHealthHandler(a.DB, a.Redis, a.Carriers.Configured),
		Message:       handlers.NewMessageHandler(a.Dispatch),
		Campaign:      handlers.NewCampaignHandler(a.Campaigns),
		Template:      handlers.NewTemplateHandler(a.Templates),
		Autoresponder: handlers.NewAutoresponderHandler(a.Autoresponders),
		Scheduler:     handlers.NewSchedulerHandler(a.Scheduler, ctx, cfg),
	}

	// Auto-start scheduler
	if cfg.Scheduler.AutoStart {
		logger.Infof("Auto-starting scheduler...")
		if err := a.Scheduler.Start(ctx); err != nil {
			logger.Warnf("Failed to auto-start scheduler: %v", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			middlewares.APIKeyHeader,
			middlewares.ActorHeader,
		},
		ExposeHeaders: []string{echo.HeaderRetryAfter},
	}))

	// Setup routes
	routes.RegisterRoutes(e, h, cfg)

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Infof("Server starting on http://localhost%s", addr)
		logger.Infof("Swagger docs available at http://localhost%s/swagger/index.html", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Shutting down gracefully...")

	// Cancel context to signal all goroutines to stop
	cancel()

	// Stop scheduler first (with timeout)
	if a.Scheduler.IsRunning() {
		logger.Infof("Stopping scheduler...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()

		done := make(chan error, 1)
		go func() {
			done <- a.Scheduler.Stop()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Errorf("Error stopping scheduler: %v", err)
			} else {
				logger.Infof("Scheduler stopped successfully")
			}
		case <-stopCtx.Done():
			logger.Warnf("Scheduler stop timeout, forcing shutdown")
		}
	}

	// Shutdown HTTP server (with timeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Infof("Shutting down HTTP server...")
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	} else {
		logger.Infof("HTTP server stopped successfully")
	}

	logger.Infof("Closing connections...")
	if err := a.Close(); err != nil {
		logger.Errorf("Error closing connections: %v", err)
	}

	logger.Infof("Graceful shutdown completed")
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agent-ledger/internal/app"
	"agent-ledger/internal/auth"
	"agent-ledger/internal/config"
	"agent-ledger/internal/database"
	"agent-ledger/internal/handlers"
	"agent-ledger/internal/jobs"
	"agent-ledger/internal/metrics"
	"agent-ledger/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog, err := logger.NewLogger(!cfg.App.IsProduction())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLog.Sync()

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	a, err := app.New(cfg, appLog)
	if err != nil {
		appLog.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	// Run migrations
	if err := database.AutoMigrate(a.DB, appLog); err != nil {
		appLog.Fatalf("Failed to run migrations: %v", err)
	}

	if a.Privy == nil {
		appLog.Fatal("PRIVY_VERIFICATION_KEY is required to serve sign-in")
	}

	// In-process scheduler; disable with RUN_SCHEDULER=false when an external
	// scheduler drives ledgerctl instead
	var scheduler *jobs.Scheduler
	if os.Getenv("RUN_SCHEDULER") != "false" {
		scheduler, err = jobs.NewScheduler(a.Jobs, cfg.Jobs, appLog)
		if err != nil {
			appLog.Fatalf("Failed to create scheduler: %v", err)
		}
		scheduler.Start()
		appLog.Info("Job scheduler started")
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), metrics.GinMiddleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.FrontendURLs,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, handlers.Handlers{
		Auth:          handlers.NewAuthHandler(a.Privy, a.Users, appLog),
		Creators:      handlers.NewCreatorHandler(a.Creators, a.Withdrawals, appLog),
		Agents:        handlers.NewAgentHandler(a.Agents, a.Tweets, appLog),
		Subscriptions: handlers.NewSubscriptionHandler(a.Subscriptions, appLog),
		DB:            a.Repo,
	}, appLog)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(ctx); err != nil {
			appLog.Warnf("Scheduler did not stop cleanly: %v", err)
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Errorf("Server forced to shutdown: %v", err)
	}

	appLog.Info("Server exited")
}

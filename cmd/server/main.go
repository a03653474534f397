package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/paystream/settlement-api/internal/auth"
	"github.com/paystream/settlement-api/internal/database"
	"github.com/paystream/settlement-api/internal/escrow"
	"github.com/paystream/settlement-api/internal/ledger"
	"github.com/paystream/settlement-api/internal/settlement"
	"github.com/paystream/settlement-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// DefaultPlatformCompanyID identifies the platform tenant when
// PLATFORM_COMPANY_ID is not set.
const DefaultPlatformCompanyID = "platform"

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the settlement API server with graceful
// shutdown support. It sets up all required services, the database
// connection, the background release worker, and API routes.
func main() {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	platformCompanyID := os.Getenv("PLATFORM_COMPANY_ID")
	if platformCompanyID == "" {
		platformCompanyID = DefaultPlatformCompanyID
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService("settlement-secret-key")
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	ledgerService := ledger.NewService(db, platformCompanyID)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	settlementService := settlement.NewService(db, escrow.NewPaymentGuard(), ledgerService, platformCompanyID)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	// Create and start the background release processor
	releaseProcessor := settlement.NewProcessor(settlementService)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go releaseProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, settlementHandlers, ledgerHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Earning routes: Protected by JWT authentication, seller-scoped
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Earning routes
		earnings := v1.Group("/earnings")
		earnings.Use(middleware.JWTAuth())
		{
			earnings.GET("", settlementHandlers.ListEarningsHandler())
			earnings.GET("/:earning_id", settlementHandlers.GetEarningHandler())
		}

		// Ledger routes (seller-scoped balance reads)
		ledgerGroup := v1.Group("/ledger")
		ledgerGroup.Use(middleware.JWTAuth())
		{
			ledgerGroup.GET("/accounts/:company_id", ledgerHandlers.GetSellerAccountHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/release/:earning_id", settlementHandlers.ReleaseEarningHandler())
			internal.POST("/release-cycle", settlementHandlers.RunReleaseCycleHandler())
			internal.GET("/ledger/accounts/:company_id", ledgerHandlers.GetAccountHandler())
			internal.GET("/ledger/groups/:group_id/entries", ledgerHandlers.GetGroupEntriesHandler())
			internal.GET("/ledger/companies/:company_id/groups", ledgerHandlers.ListGroupsHandler())
		}
	}
}

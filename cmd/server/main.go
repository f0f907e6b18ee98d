package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/config"
	"github.com/nkolo-transit/booking-backend/internal/database"
	"github.com/nkolo-transit/booking-backend/internal/handlers"
	"github.com/nkolo-transit/booking-backend/internal/middleware"
	"github.com/nkolo-transit/booking-backend/internal/services"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Nkolo Transit Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Type assertion needed: db is interface DB, but repositories need *sqlx.DB
	sqlxDB, ok := db.(*database.PostgresDB)
	if !ok {
		logger.Fatal("Failed to cast database connection to PostgresDB")
	}

	// Initialize repositories
	tripRepo := database.NewTripRepository(sqlxDB.DB)
	holdRepo := database.NewHoldRepository(sqlxDB.DB)
	bookingRepo := database.NewBookingRepository(sqlxDB.DB)
	customerRepo := database.NewCustomerRepository(sqlxDB.DB)
	auditRepo := database.NewPaymentAuditRepository(sqlxDB.DB, logger)

	// Initialize services
	logger.Info("Initializing services...")
	seatMapService := services.NewSeatMapService()
	holdService := services.NewHoldService(tripRepo, holdRepo, seatMapService, &cfg.Booking, logger)
	mesombService := services.NewMesombService(&cfg.Payment, logger)
	if !mesombService.IsConfigured() {
		logger.Warn("MeSomb credentials missing, payment collection will fail")
	}

	ticketIssuer := services.NewLogTicketIssuer(logger)
	reconService := services.NewReconciliationService(
		bookingRepo, tripRepo, customerRepo, auditRepo, ticketIssuer, &cfg.Booking, logger)
	bookingService := services.NewBookingService(
		tripRepo, holdRepo, bookingRepo, customerRepo, auditRepo,
		mesombService, reconService, &cfg.Booking, logger)
	rateLimitService := services.NewRateLimitService(db)
	sweeperService := services.NewSweeperService(holdRepo, bookingRepo, auditRepo, rateLimitService, &cfg.Booking, logger)

	// Initialize handlers
	tripHandler := handlers.NewTripHandler(holdService, logger)
	holdHandler := handlers.NewHoldHandler(holdService, rateLimitService, logger)
	checkoutHandler := handlers.NewCheckoutHandler(bookingService, rateLimitService, logger)
	paymentHandler := handlers.NewPaymentHandler(bookingService, mesombService, reconService, auditRepo, logger)
	reviewHandler := handlers.NewReviewHandler(auditRepo, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check (no session required)
	router.GET("/health", healthCheckHandler(db))

	v1 := router.Group("/api/v1")

	// Server-to-server gateway callback, no visitor session
	v1.POST("/payments/webhook", paymentHandler.Webhook)

	session := v1.Group("")
	session.Use(middleware.Session(logger))
	{
		session.GET("/trips/:trip_id/seatmap", tripHandler.GetSeatMap)

		session.POST("/holds", holdHandler.CreateHold)
		session.DELETE("/holds/:trip_id", holdHandler.ReleaseHold)

		session.POST("/checkout", checkoutHandler.Checkout)

		session.GET("/bookings/:booking_id/payment-status", paymentHandler.PaymentStatus)

		admin := session.Group("/admin")
		{
			admin.GET("/review-queue", reviewHandler.ReviewQueue)
		}
	}

	// Start background sweeps
	if err := sweeperService.Start(); err != nil {
		logger.Fatalf("Failed to start sweeper service: %v", err)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	sweeperService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if sessionID, exists := c.Get("session_id"); exists {
			fields["session_id"] = sessionID
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
		} else {
			status := c.Writer.Status()
			if status >= 500 {
				entry.Error("Request completed with server error")
			} else if status >= 400 {
				entry.Warn("Request completed with client error")
			} else {
				entry.Info("Request completed successfully")
			}
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}

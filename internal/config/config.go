package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Booking flow configuration
	Booking BookingConfig

	// Payment gateway (MeSomb) configuration
	Payment PaymentConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// BookingConfig holds seat hold and reconciliation tuning
type BookingConfig struct {
	HoldTTL              time.Duration // How long a seat hold survives (default 6 min)
	PendingReviewHorizon time.Duration // Pending bookings older than this go to the review queue
	PollMinAge           time.Duration // Minimum booking age before a poll hits the gateway
	Currency             string        // Settlement currency (XAF)
}

// PaymentConfig holds MeSomb collection API configuration
type PaymentConfig struct {
	BaseURL        string // MeSomb API base URL
	ApplicationKey string // MeSomb application key
	AccessKey      string // MeSomb access key
	SecretKey      string // MeSomb secret key (SECRET - never expose to client)
	WebhookSecret  string // HMAC secret for inbound webhooks (defaults to SecretKey)
	MinAmount      float64
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Booking: BookingConfig{
			HoldTTL:              time.Duration(getEnvAsInt("SEAT_HOLD_TTL_MINUTES", 6)) * time.Minute,
			PendingReviewHorizon: time.Duration(getEnvAsInt("PENDING_REVIEW_HORIZON_MINUTES", 30)) * time.Minute,
			PollMinAge:           time.Duration(getEnvAsInt("POLL_MIN_AGE_SECONDS", 20)) * time.Second,
			Currency:             getEnv("BOOKING_CURRENCY", "XAF"),
		},
		Payment: PaymentConfig{
			BaseURL:        getEnv("MESOMB_BASE_URL", "https://mesomb.hachther.com/api/v1.1"),
			ApplicationKey: getEnv("MESOMB_APPLICATION_KEY", ""),
			AccessKey:      getEnv("MESOMB_ACCESS_KEY", ""),
			SecretKey:      getEnv("MESOMB_SECRET_KEY", ""),
			WebhookSecret:  getEnv("MESOMB_WEBHOOK_SECRET", ""),
			MinAmount:      getEnvAsFloat("MESOMB_MIN_AMOUNT", 100),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "X-Mesomb-Signature"}),
		},
	}

	// The webhook HMAC secret falls back to the API secret key, matching
	// the gateway's default signing behaviour.
	if config.Payment.WebhookSecret == "" {
		config.Payment.WebhookSecret = config.Payment.SecretKey
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Gateway credentials are only mandatory outside development; in dev
	// the collect call fails fast with a configuration error instead.
	if c.Server.Environment == "production" {
		if c.Payment.ApplicationKey == "" {
			return fmt.Errorf("MESOMB_APPLICATION_KEY is required in production")
		}
		if c.Payment.AccessKey == "" {
			return fmt.Errorf("MESOMB_ACCESS_KEY is required in production")
		}
		if c.Payment.SecretKey == "" {
			return fmt.Errorf("MESOMB_SECRET_KEY is required in production")
		}
	}

	if c.Booking.HoldTTL <= 0 {
		return fmt.Errorf("SEAT_HOLD_TTL_MINUTES must be positive")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

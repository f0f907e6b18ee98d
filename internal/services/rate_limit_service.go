package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nkolo-transit/booking-backend/internal/database"
)

// RateLimitService throttles hold and checkout attempts. Holds are limited
// per session to stop seat-map scraping, checkouts per IP because a payment
// attempt hits the gateway and costs real provider quota.
type RateLimitService struct {
	db database.DB
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.DB) *RateLimitService {
	return &RateLimitService{
		db: db,
	}
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxHoldRequests     int           // Max hold attempts per session
	HoldWindow          time.Duration // Time window for hold rate limit
	MaxCheckoutRequests int           // Max checkout attempts per IP
	CheckoutWindow      time.Duration // Time window for checkout rate limit
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxHoldRequests:     20,               // 20 hold attempts
		HoldWindow:          5 * time.Minute,  // per 5 minutes
		MaxCheckoutRequests: 15,               // 15 checkout attempts
		CheckoutWindow:      30 * time.Minute, // per 30 minutes
	}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "session" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// CheckHoldRateLimit checks if a session has exceeded the hold attempt limit
func (s *RateLimitService) CheckHoldRateLimit(sessionID string) error {
	config := DefaultRateLimitConfig()

	count, lastRequest, err := s.getRequestCount(sessionID, "session", config.HoldWindow)
	if err != nil {
		return fmt.Errorf("failed to check hold rate limit: %w", err)
	}

	if count >= config.MaxHoldRequests {
		retryAfter := lastRequest.Add(config.HoldWindow)
		return &RateLimitError{
			Message:    fmt.Sprintf("Too many seat hold attempts. Please try again after %s", retryAfter.Format("15:04:05")),
			RetryAfter: retryAfter,
			Type:       "session",
		}
	}

	return nil
}

// CheckCheckoutRateLimit checks if an IP has exceeded the checkout limit
func (s *RateLimitService) CheckCheckoutRateLimit(ip string) error {
	if ip == "" {
		return nil
	}
	config := DefaultRateLimitConfig()

	count, lastRequest, err := s.getRequestCount(ip, "ip", config.CheckoutWindow)
	if err != nil {
		return fmt.Errorf("failed to check checkout rate limit: %w", err)
	}

	if count >= config.MaxCheckoutRequests {
		retryAfter := lastRequest.Add(config.CheckoutWindow)
		return &RateLimitError{
			Message:    fmt.Sprintf("Too many payment attempts from this address. Please try again after %s", retryAfter.Format("15:04:05")),
			RetryAfter: retryAfter,
			Type:       "ip",
		}
	}

	return nil
}

// getRequestCount gets the number of requests within the time window
func (s *RateLimitService) getRequestCount(identifier, identifierType string, window time.Duration) (int, time.Time, error) {
	windowStart := time.Now().Add(-window)

	query := `
		SELECT COUNT(*), COALESCE(MAX(created_at), NOW())
		FROM request_rate_limits
		WHERE identifier = $1
		  AND identifier_type = $2
		  AND created_at > $3
	`

	var count int
	var lastRequest time.Time

	err := s.db.QueryRow(query, identifier, identifierType, windowStart).Scan(&count, &lastRequest)
	if err != nil && err != sql.ErrNoRows {
		return 0, time.Time{}, err
	}

	return count, lastRequest, nil
}

// RecordHoldRequest records a hold attempt for rate limiting
func (s *RateLimitService) RecordHoldRequest(sessionID string) error {
	return s.recordRequest(sessionID, "session")
}

// RecordCheckoutRequest records a checkout attempt for rate limiting
func (s *RateLimitService) RecordCheckoutRequest(ip string) error {
	if ip == "" {
		return nil
	}
	return s.recordRequest(ip, "ip")
}

// recordRequest inserts a rate limit record
func (s *RateLimitService) recordRequest(identifier, identifierType string) error {
	query := `
		INSERT INTO request_rate_limits (identifier, identifier_type, created_at)
		VALUES ($1, $2, NOW())
	`

	_, err := s.db.Exec(query, identifier, identifierType)
	return err
}

// CleanupExpiredRateLimits removes old rate limit records
func (s *RateLimitService) CleanupExpiredRateLimits() (int64, error) {
	config := DefaultRateLimitConfig()

	maxWindow := config.CheckoutWindow
	if config.HoldWindow > maxWindow {
		maxWindow = config.HoldWindow
	}

	cutoffTime := time.Now().Add(-maxWindow)

	query := `
		DELETE FROM request_rate_limits
		WHERE created_at < $1
	`

	result, err := s.db.Exec(query, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limits: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// IsRateLimited checks if an identifier is currently rate limited
func (s *RateLimitService) IsRateLimited(identifier, identifierType string) (bool, time.Time, error) {
	config := DefaultRateLimitConfig()

	window := config.HoldWindow
	maxRequests := config.MaxHoldRequests
	if identifierType == "ip" {
		window = config.CheckoutWindow
		maxRequests = config.MaxCheckoutRequests
	}

	count, lastRequest, err := s.getRequestCount(identifier, identifierType, window)
	if err != nil {
		return false, time.Time{}, err
	}

	if count >= maxRequests {
		retryAfter := lastRequest.Add(window)
		return true, retryAfter, nil
	}

	return false, time.Time{}, nil
}

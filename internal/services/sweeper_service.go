package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/config"
	"github.com/nkolo-transit/booking-backend/internal/database"
	"github.com/nkolo-transit/booking-backend/internal/models"
)

// staleBatchSize bounds how many stale bookings one sweep surfaces
const staleBatchSize = 100

// SweeperService manages the scheduled background jobs: clearing expired
// seat holds and surfacing stale pending bookings to the operator review
// queue. Hold expiry is also swept lazily on availability reads, the cron
// job just keeps the table small on quiet trips.
type SweeperService struct {
	cron        *cron.Cron
	holdRepo    *database.HoldRepository
	bookingRepo *database.BookingRepository
	auditRepo   *database.PaymentAuditRepository
	rateLimiter *RateLimitService
	cfg         *config.BookingConfig
	logger      *logrus.Logger
}

// NewSweeperService creates a new SweeperService
func NewSweeperService(
	holdRepo *database.HoldRepository,
	bookingRepo *database.BookingRepository,
	auditRepo *database.PaymentAuditRepository,
	rateLimiter *RateLimitService,
	cfg *config.BookingConfig,
	logger *logrus.Logger,
) *SweeperService {
	return &SweeperService{
		cron:        cron.New(cron.WithSeconds()),
		holdRepo:    holdRepo,
		bookingRepo: bookingRepo,
		auditRepo:   auditRepo,
		rateLimiter: rateLimiter,
		cfg:         cfg,
		logger:      logger,
	}
}

// Start schedules and starts all background jobs
func (s *SweeperService) Start() error {
	// Cron format: second minute hour day month weekday
	_, err := s.cron.AddFunc("0 * * * * *", s.sweepExpiredHoldsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule hold sweep job: %w", err)
	}

	_, err = s.cron.AddFunc("0 */5 * * * *", s.surfaceStaleBookingsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule stale booking job: %w", err)
	}

	_, err = s.cron.AddFunc("0 0 * * * *", s.cleanupRateLimitsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule rate limit cleanup job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Sweeper service started")

	return nil
}

// Stop stops all background jobs, waiting for running ones to finish
func (s *SweeperService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Sweeper service stopped")
}

// sweepExpiredHoldsJob deletes holds past their TTL across all trips
func (s *SweeperService) sweepExpiredHoldsJob() {
	start := time.Now()

	removed, err := s.holdRepo.DeleteExpired()
	if err != nil {
		s.logger.WithError(err).Error("Expired hold sweep failed")
		return
	}

	if removed > 0 {
		s.logger.WithFields(logrus.Fields{
			"removed":  removed,
			"duration": time.Since(start).String(),
		}).Info("Expired seat holds swept")
	}
}

// surfaceStaleBookingsJob parks long-pending bookings for operator review
// instead of letting them be retried forever
func (s *SweeperService) surfaceStaleBookingsJob() {
	ctx := context.Background()

	stale, err := s.bookingRepo.ListStalePending(s.cfg.PendingReviewHorizon, staleBatchSize)
	if err != nil {
		s.logger.WithError(err).Error("Stale booking sweep failed")
		return
	}

	for _, booking := range stale {
		if err := s.bookingRepo.MarkUnknown(booking.ID); err != nil {
			s.logger.WithError(err).WithField("booking_reference", booking.BookingReference).
				Error("Failed to park stale booking")
			continue
		}

		audit := models.NewPaymentAudit(models.PaymentEventStaleBooking, models.PaymentSourceSystem).
			SetBooking(booking.ID, booking.BookingReference).
			SetError(fmt.Sprintf("pending for more than %s without a gateway outcome", s.cfg.PendingReviewHorizon))
		if err := s.auditRepo.Log(ctx, audit); err != nil {
			s.logger.WithError(err).Error("Failed to record stale booking")
		}

		s.logger.WithFields(logrus.Fields{
			"booking_reference": booking.BookingReference,
			"age":               time.Since(booking.CreatedAt).String(),
		}).Warn("Stale pending booking surfaced for review")
	}
}

// cleanupRateLimitsJob prunes rate limit records past every window
func (s *SweeperService) cleanupRateLimitsJob() {
	removed, err := s.rateLimiter.CleanupExpiredRateLimits()
	if err != nil {
		s.logger.WithError(err).Error("Rate limit cleanup failed")
		return
	}

	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Expired rate limit records cleaned up")
	}
}

// RunSweepNow runs the expired hold sweep immediately
func (s *SweeperService) RunSweepNow() {
	s.sweepExpiredHoldsJob()
}

// JobStatus returns the status of scheduled jobs
func (s *SweeperService) JobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}

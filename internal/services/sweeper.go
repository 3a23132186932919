package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/coursepay/internal/logging"
	"github.com/example/coursepay/internal/models"
)

// PaymentRefresher is the part of Reconciler the sweeper drives.
type PaymentRefresher interface {
	Refresh(ctx context.Context, payment *models.Payment) (*models.Payment, error)
}

// SweepStats counts what one sweep did.
type SweepStats struct {
	Checked   int
	Completed int
	Failed    int
	Errors    int
}

// Sweeper periodically re-checks pending payments whose webhook never arrived
// and whose buyer stopped polling.
type Sweeper struct {
	db        *gorm.DB
	refresher PaymentRefresher
	interval  time.Duration
	minAge    time.Duration
	maxAge    time.Duration
	batchSize int
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewSweeper(db *gorm.DB, refresher PaymentRefresher, interval, minAge, maxAge time.Duration, log *zap.SugaredLogger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		db:        db,
		refresher: refresher,
		interval:  interval,
		minAge:    minAge,
		maxAge:    maxAge,
		batchSize: 100,
		log:       log,
		now:       time.Now,
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}

		stats, err := s.SweepOnce(ctx)
		if err != nil {
			s.log.Errorw("sweep failed", logging.Step(SourceSweep), "error", err)
			continue
		}
		if stats.Checked > 0 {
			s.log.Infow("sweep done",
				logging.Step(SourceSweep),
				"checked", stats.Checked,
				"completed", stats.Completed,
				"failed", stats.Failed,
				"errors", stats.Errors,
			)
		}
	}
}

// SweepOnce refreshes one batch of pending payments inside the age window.
// Rows never checked go first, then the ones checked longest ago, so payments
// the gateway keeps failing to answer for cannot hold the batch forever.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepStats, error) {
	now := s.now()
	query := s.db.WithContext(ctx).
		Where("status = ? AND paymob_order_id IS NOT NULL", models.PaymentStatusPending).
		Where("created_at <= ?", now.Add(-s.minAge))
	if s.maxAge > 0 {
		query = query.Where("created_at >= ?", now.Add(-s.maxAge))
	}

	var payments []models.Payment
	err := query.
		Order("last_checked_at IS NOT NULL").
		Order("last_checked_at ASC").
		Order("created_at ASC").
		Limit(s.batchSize).
		Find(&payments).Error
	if err != nil {
		return SweepStats{}, fmt.Errorf("list pending payments: %w", err)
	}
	if len(payments) == 0 {
		return SweepStats{}, nil
	}

	ids := make([]uuid.UUID, 0, len(payments))
	for i := range payments {
		ids = append(ids, payments[i].ID)
	}
	err = s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id IN ?", ids).
		UpdateColumn("last_checked_at", now).Error
	if err != nil {
		return SweepStats{}, fmt.Errorf("mark payments checked: %w", err)
	}

	var stats SweepStats
	for i := range payments {
		if ctx.Err() != nil {
			break
		}
		stats.Checked++

		updated, err := s.refresher.Refresh(ctx, &payments[i])
		if err != nil {
			stats.Errors++
			s.log.Warnw("refresh failed",
				logging.Step(SourceSweep),
				logging.PaymentID(payments[i].ID),
				logging.OrderID(payments[i].OrderRef()),
				"error", err,
			)
			continue
		}

		switch updated.Status {
		case models.PaymentStatusCompleted:
			stats.Completed++
		case models.PaymentStatusFailed:
			stats.Failed++
		}
	}

	return stats, nil
}

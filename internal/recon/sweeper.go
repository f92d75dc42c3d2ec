package recon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/checkout/internal/ledger"
	"github.com/Skotchmaster/checkout/internal/models"
)

// Sweeper repairs the window between the order-store write and reservation
// finalization: a reservation stuck in reserved is committed when its
// checkout produced a durable order, released when it did not.
type Sweeper struct {
	DB     *gorm.DB
	Ledger *ledger.Ledger
	Log    *slog.Logger

	// Interval between sweeps; OlderThan keeps the sweep away from
	// checkouts still in flight.
	Interval  time.Duration
	OlderThan time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.Log.Error("reservation_sweep_failed", "error", err)
			}
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-s.OlderThan).Unix()

	var stale []models.Reservation
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND created_at <= ?", ledger.StatusReserved, cutoff).
		Find(&stale).Error; err != nil {
		return fmt.Errorf("list stale reservations: %w", err)
	}

	for i := range stale {
		res := &stale[i]

		var orders int64
		if err := s.DB.WithContext(ctx).Model(&models.Order{}).
			Where("checkout_id = ?", res.CheckoutID).
			Count(&orders).Error; err != nil {
			return fmt.Errorf("match reservation %s against orders: %w", res.ID, err)
		}

		if orders > 0 {
			if err := s.Ledger.Commit(ctx, res); err != nil {
				return err
			}
			s.Log.Info("reservation_finalized", "reservation_id", res.ID, "checkout_id", res.CheckoutID)
			continue
		}

		if err := s.Ledger.Release(ctx, res); err != nil {
			return err
		}
		s.Log.Info("reservation_released", "reservation_id", res.ID, "checkout_id", res.CheckoutID)
	}
	return nil
}

package orderstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/checkout/internal/models"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrUnknownStatus = errors.New("unknown order status")
)

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}

// Store persists committed orders. Items are append-only; only the status
// field ever changes after commit, and only through SetStatus.
type Store struct {
	DB *gorm.DB
}

// Create writes the order and its items in one transaction. This write is
// the commit point of a checkout: once it returns nil the order is durable.
func (s *Store) Create(ctx context.Context, order *models.Order) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("persist order: %w", err)
		}
		return nil
	})
}

func (s *Store) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetForUser scopes the read to the owning user. Privileged callers go
// through Get instead; the privilege decision belongs to the auth layer.
func (s *Store) GetForUser(ctx context.Context, id, userID uint) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (s *Store) List(ctx context.Context, userID uint, offset, limit int) (int64, []models.Order, error) {
	q := s.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := q.Preload("Items").
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

func (s *Store) ListAll(ctx context.Context, offset, limit int) (int64, []models.Order, error) {
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Order{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := s.DB.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

// SetStatus applies one transition of the order state machine. The update is
// conditional on the status the transition was validated against, so a
// concurrent transition cannot be overwritten silently.
func (s *Store) SetStatus(ctx context.Context, id uint, to Status) (*models.Order, error) {
	if !KnownStatus(to) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}

	var order models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		from := Status(order.Status)
		if !CanTransition(from, to) {
			return &InvalidTransitionError{From: from, To: to}
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, string(from)).
			Update("status", string(to))
		if res.Error != nil {
			return fmt.Errorf("update status of order %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return &InvalidTransitionError{From: from, To: to}
		}
		order.Status = string(to)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, order.ID)
}

type Stats struct {
	TotalOrders int64 `json:"total_orders"`
	Revenue     int64 `json:"revenue"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.DB.WithContext(ctx).Model(&models.Order{}).Count(&st.TotalOrders).Error; err != nil {
		return Stats{}, err
	}
	if err := s.DB.WithContext(ctx).Model(&models.Order{}).
		Select("COALESCE(SUM(total), 0)").
		Scan(&st.Revenue).Error; err != nil {
		return Stats{}, err
	}
	return st, nil
}

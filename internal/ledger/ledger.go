package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/checkout/internal/models"
)

const (
	StatusReserved  = "reserved"
	StatusCommitted = "committed"
	StatusReleased  = "released"
)

type InsufficientStockError struct {
	ProductID uint
	Available uint
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: %d available", e.ProductID, e.Available)
}

// Ledger is the authoritative stock accountant. Every stock mutation goes
// through a single conditional UPDATE so concurrent checkouts can never
// drive a count below zero.
type Ledger struct {
	DB *gorm.DB
}

// Reserve decrements stock by qty only when count >= qty, in one statement,
// and records the claim as a reservation row. On shortage nothing is mutated
// and the current availability is reported back.
func (l *Ledger) Reserve(ctx context.Context, checkoutID string, productID, qty uint) (*models.Reservation, error) {
	if qty == 0 {
		return nil, fmt.Errorf("reserve product %d: quantity must be positive", productID)
	}

	var res *models.Reservation
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dec := tx.Model(&models.Product{}).
			Where("id = ? AND count >= ?", productID, qty).
			Update("count", gorm.Expr("count - ?", qty))
		if dec.Error != nil {
			return fmt.Errorf("decrement stock of product %d: %w", productID, dec.Error)
		}
		if dec.RowsAffected == 0 {
			var p models.Product
			if err := tx.Select("count").First(&p, productID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &InsufficientStockError{ProductID: productID, Available: 0}
				}
				return fmt.Errorf("read stock of product %d: %w", productID, err)
			}
			return &InsufficientStockError{ProductID: productID, Available: p.Count}
		}

		res = &models.Reservation{
			ID:         uuid.NewString(),
			CheckoutID: checkoutID,
			ProductID:  productID,
			Quantity:   qty,
			Status:     StatusReserved,
			CreatedAt:  time.Now().Unix(),
		}
		if err := tx.Create(res).Error; err != nil {
			return fmt.Errorf("record reservation for product %d: %w", productID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Release puts the reserved quantity back. The status flip is conditional on
// the row still being reserved, so releasing twice restores stock only once.
func (l *Ledger) Release(ctx context.Context, res *models.Reservation) error {
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flip := tx.Model(&models.Reservation{}).
			Where("id = ? AND status = ?", res.ID, StatusReserved).
			Update("status", StatusReleased)
		if flip.Error != nil {
			return fmt.Errorf("release reservation %s: %w", res.ID, flip.Error)
		}
		if flip.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&models.Product{}).
			Where("id = ?", res.ProductID).
			Update("count", gorm.Expr("count + ?", res.Quantity)).Error; err != nil {
			return fmt.Errorf("restore stock of product %d: %w", res.ProductID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	res.Status = StatusReleased
	return nil
}

// Commit finalizes a reservation. No stock change, the decrement already
// happened at reserve time; this only marks the claim non-reversible.
func (l *Ledger) Commit(ctx context.Context, res *models.Reservation) error {
	flip := l.DB.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status = ?", res.ID, StatusReserved).
		Update("status", StatusCommitted)
	if flip.Error != nil {
		return fmt.Errorf("commit reservation %s: %w", res.ID, flip.Error)
	}
	if flip.RowsAffected == 1 {
		res.Status = StatusCommitted
	}
	return nil
}

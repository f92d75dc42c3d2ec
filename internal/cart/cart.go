package cart

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/Skotchmaster/checkout/internal/models"
)

type Line struct {
	ProductID uint `json:"product_id"`
	Quantity  uint `json:"quantity"`
}

// Snapshot is an immutable view of a cart at the moment checkout is invoked.
// Lines are keyed by product: no duplicates, positive quantities, ascending
// product id.
type Snapshot struct {
	Lines []Line `json:"lines"`
}

func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// NewSnapshot validates and orders the given lines. Merging duplicate
// product entries is the cart owner's job, not ours: duplicates are an error.
func NewSnapshot(lines []Line) (Snapshot, error) {
	out := make([]Line, 0, len(lines))
	seen := make(map[uint]bool, len(lines))
	for _, ln := range lines {
		if ln.Quantity == 0 {
			return Snapshot{}, fmt.Errorf("cart line for product %d has zero quantity", ln.ProductID)
		}
		if seen[ln.ProductID] {
			return Snapshot{}, fmt.Errorf("duplicate cart line for product %d", ln.ProductID)
		}
		seen[ln.ProductID] = true
		out = append(out, ln)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return Snapshot{Lines: out}, nil
}

// Source is the external cart collaborator boundary: it produces snapshots
// and accepts the post-commit clear instruction. The engine never mutates
// cart state directly.
type Source interface {
	Snapshot(ctx context.Context, userID uint) (Snapshot, error)
	Clear(ctx context.Context, userID uint) error
}

type GormSource struct {
	DB *gorm.DB
}

func (s *GormSource) Snapshot(ctx context.Context, userID uint) (Snapshot, error) {
	var items []models.CartItem
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("product_id ASC").
		Find(&items).Error; err != nil {
		return Snapshot{}, fmt.Errorf("read cart of user %d: %w", userID, err)
	}

	// the cart table may hold several rows per product; merge them here so
	// the snapshot stays keyed by product id
	merged := make(map[uint]uint, len(items))
	order := make([]uint, 0, len(items))
	for _, it := range items {
		if _, ok := merged[it.ProductID]; !ok {
			order = append(order, it.ProductID)
		}
		merged[it.ProductID] += it.Quantity
	}

	lines := make([]Line, 0, len(order))
	for _, pid := range order {
		lines = append(lines, Line{ProductID: pid, Quantity: merged[pid]})
	}
	return NewSnapshot(lines)
}

func (s *GormSource) Clear(ctx context.Context, userID uint) error {
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("clear cart of user %d: %w", userID, err)
	}
	return nil
}

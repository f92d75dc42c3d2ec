package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/checkout/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

// Reader is the read side of the catalog collaborator. The checkout engine
// resolves prices and existence through it; catalog editing lives elsewhere.
type Reader struct {
	DB *gorm.DB
}

func (r *Reader) Product(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrUnauthenticated = errors.New("authentication required")
)

type ProductNotFoundError struct {
	ProductID uint
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

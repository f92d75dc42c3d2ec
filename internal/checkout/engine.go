package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/checkout/internal/cart"
	"github.com/Skotchmaster/checkout/internal/catalog"
	"github.com/Skotchmaster/checkout/internal/ledger"
	"github.com/Skotchmaster/checkout/internal/logging"
	"github.com/Skotchmaster/checkout/internal/models"
	"github.com/Skotchmaster/checkout/internal/orderstore"
)

// Catalog resolves current product records by id.
type Catalog interface {
	Product(ctx context.Context, id uint) (*models.Product, error)
}

// Notifier is the best-effort confirmation channel. Its errors never reach
// the checkout caller.
type Notifier interface {
	OrderCommitted(ctx context.Context, order *models.Order) error
}

// Clearer receives the post-commit clear instruction for the user's cart.
type Clearer interface {
	Clear(ctx context.Context, userID uint) error
}

// Engine converts a cart snapshot into a durable order. Either every line is
// reserved and one order is created, or nothing changes: partial stock
// decrements never survive a failed checkout.
type Engine struct {
	Ledger  *ledger.Ledger
	Store   *orderstore.Store
	Catalog Catalog
	Cart    Clearer
	Notify  Notifier

	// NotifyTimeout bounds the async confirmation dispatch.
	NotifyTimeout time.Duration
}

func (e *Engine) Checkout(ctx context.Context, userID uint, snap cart.Snapshot) (*models.Order, error) {
	l := logging.FromContext(ctx).With("component", "checkout", "user_id", userID)

	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if snap.Empty() {
		return nil, ErrEmptyCart
	}

	// resolve every product before touching the ledger: a missing product
	// aborts the checkout with no reservations to unwind, and these reads
	// are the price snapshot used through commit
	products := make(map[uint]*models.Product, len(snap.Lines))
	for _, ln := range snap.Lines {
		p, err := e.Catalog.Product(ctx, ln.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil, &ProductNotFoundError{ProductID: ln.ProductID}
			}
			return nil, fmt.Errorf("resolve product %d: %w", ln.ProductID, err)
		}
		products[ln.ProductID] = p
	}

	// snapshot lines are sorted by product id; acquiring in that fixed order
	// keeps concurrent checkouts over overlapping products from circular wait
	checkoutID := uuid.NewString()
	held := make([]*models.Reservation, 0, len(snap.Lines))
	for _, ln := range snap.Lines {
		res, err := e.Ledger.Reserve(ctx, checkoutID, ln.ProductID, ln.Quantity)
		if err != nil {
			e.releaseAll(ctx, held)
			return nil, err
		}
		held = append(held, res)
	}

	order := &models.Order{
		UserID:     userID,
		CheckoutID: checkoutID,
		Status:     string(orderstore.StatusPending),
		CreatedAt:  time.Now().Unix(),
		Items:      make([]models.OrderItem, 0, len(snap.Lines)),
	}
	var total int64
	for _, ln := range snap.Lines {
		p := products[ln.ProductID]
		lineTotal := int64(ln.Quantity) * p.Price
		order.Items = append(order.Items, models.OrderItem{
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			UnitPrice: p.Price,
		})
		total += lineTotal
	}
	order.Total = total

	if err := e.Store.Create(ctx, order); err != nil {
		e.releaseAll(ctx, held)
		return nil, err
	}

	// the order is durable from here on; finalization failures are repaired
	// by the reconciliation sweep, never surfaced to the caller
	for _, res := range held {
		if err := e.Ledger.Commit(ctx, res); err != nil {
			l.Error("reservation_finalize_failed", "order_id", order.ID, "reservation_id", res.ID, "error", err)
		}
	}

	if e.Cart != nil {
		if err := e.Cart.Clear(ctx, userID); err != nil {
			l.Warn("cart_clear_failed", "order_id", order.ID, "error", err)
		}
	}

	if e.Notify != nil {
		copied := *order
		go func() {
			timeout := e.NotifyTimeout
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			nctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := e.Notify.OrderCommitted(nctx, &copied); err != nil {
				l.Warn("order_notification_failed", "order_id", copied.ID, "error", err)
			}
		}()
	}

	l.Info("checkout_committed", "order_id", order.ID, "total", order.Total, "lines", len(order.Items))
	return order, nil
}

// releaseAll unwinds reservations of a failed attempt in reverse order of
// acquisition.
func (e *Engine) releaseAll(ctx context.Context, held []*models.Reservation) {
	l := logging.FromContext(ctx)
	for i := len(held) - 1; i >= 0; i-- {
		if err := e.Ledger.Release(ctx, held[i]); err != nil {
			l.Error("reservation_release_failed", "reservation_id", held[i].ID, "error", err)
		}
	}
}

// Order reads a single order, scoped to the owning user unless privileged.
func (e *Engine) Order(ctx context.Context, orderID, requestingUserID uint, privileged bool) (*models.Order, error) {
	if privileged {
		return e.Store.Get(ctx, orderID)
	}
	return e.Store.GetForUser(ctx, orderID, requestingUserID)
}

// SetStatus applies an administrative status transition.
func (e *Engine) SetStatus(ctx context.Context, orderID uint, to orderstore.Status) (*models.Order, error) {
	return e.Store.SetStatus(ctx, orderID, to)
}

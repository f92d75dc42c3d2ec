package orderstore

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/checkout/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.OrderItem{}))
	return db
}

func newOrder(userID uint, checkoutID string, total int64) *models.Order {
	return &models.Order{
		UserID:     userID,
		CheckoutID: checkoutID,
		Total:      total,
		Status:     string(StatusPending),
		CreatedAt:  1700000000,
		Items: []models.OrderItem{
			{ProductID: 1, Quantity: 2, UnitPrice: total / 2},
		},
	}
}

func TestCreateAndGet(t *testing.T) {
	db := initTestDB(t)
	s := &Store{DB: db}
	ctx := context.Background()

	order := newOrder(1, "checkout-1", 2000)
	require.NoError(t, s.Create(ctx, order))
	require.NotZero(t, order.ID)

	got, err := s.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)
	require.Equal(t, int64(2000), got.Total)
	require.Equal(t, string(StatusPending), got.Status)
	require.Len(t, got.Items, 1)
	require.Equal(t, int64(1000), got.Items[0].UnitPrice)
}

func TestGetForUserScoping(t *testing.T) {
	db := initTestDB(t)
	s := &Store{DB: db}
	ctx := context.Background()

	order := newOrder(1, "checkout-1", 2000)
	require.NoError(t, s.Create(ctx, order))

	got, err := s.GetForUser(ctx, order.ID, 1)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)

	_, err = s.GetForUser(ctx, order.ID, 2)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStatusTransitions(t *testing.T) {
	db := initTestDB(t)
	s := &Store{DB: db}
	ctx := context.Background()

	order := newOrder(1, "checkout-1", 2000)
	require.NoError(t, s.Create(ctx, order))

	for _, next := range []Status{StatusProcessing, StatusShipped, StatusDelivered} {
		got, err := s.SetStatus(ctx, order.ID, next)
		require.NoError(t, err)
		require.Equal(t, string(next), got.Status)
	}
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	db := initTestDB(t)
	s := &Store{DB: db}
	ctx := context.Background()

	order := newOrder(1, "checkout-1", 2000)
	require.NoError(t, s.Create(ctx, order))

	_, err := s.SetStatus(ctx, order.ID, StatusProcessing)
	require.NoError(t, err)
	_, err = s.SetStatus(ctx, order.ID, StatusShipped)
	require.NoError(t, err)
	_, err = s.SetStatus(ctx, order.ID, StatusDelivered)
	require.NoError(t, err)

	_, err = s.SetStatus(ctx, order.ID, StatusCancelled)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, StatusDelivered, invalid.From)
	require.Equal(t, StatusCancelled, invalid.To)

	// status unchanged
	got, err := s.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, string(StatusDelivered), got.Status)
}

func TestCancelFromNonTerminal(t *testing.T) {
	db := initTestDB(t)
	s := &Store{DB: db}
	ctx := context.Background()

	order := newOrder(1, "checkout-1", 2000)
	require.NoError(t, s.Create(ctx, order))

	got, err := s.SetStatus(ctx, order.ID, StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, string(StatusCancelled), got.Status)

	_, err = s.SetStatus(ctx, order.ID, StatusProcessing)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestSetStatusUnknown(t *testing.T) {
	db := initTestDB(t)
	s := &Store{DB: db}
	ctx := context.Background()

	order := newOrder(1, "checkout-1", 2000)
	require.NoError(t, s.Create(ctx, order))

	_, err := s.SetStatus(ctx, order.ID, Status("misplaced"))
	require.ErrorIs(t, err, ErrUnknownStatus)

	_, err = s.SetStatus(ctx, 999, StatusProcessing)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListAndStats(t *testing.T) {
	db := initTestDB(t)
	s := &Store{DB: db}
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newOrder(1, "checkout-1", 2000)))
	require.NoError(t, s.Create(ctx, newOrder(1, "checkout-2", 3000)))
	require.NoError(t, s.Create(ctx, newOrder(2, "checkout-3", 500)))

	total, orders, err := s.List(ctx, 1, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, orders, 2)

	allTotal, all, err := s.ListAll(ctx, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(3), allTotal)
	require.Len(t, all, 3)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.TotalOrders)
	require.Equal(t, int64(5500), stats.Revenue)
}

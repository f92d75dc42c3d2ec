package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Skotchmaster/checkout/internal/models"
)

const defaultAttempts = 3

type ConfirmationLine struct {
	ProductID uint  `json:"product_id"`
	Quantity  uint  `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

// Confirmation is the payload published for a committed order. Field set and
// fixed-point amounts are stable so downstream consumers can rely on the
// shape.
type Confirmation struct {
	Type      string             `json:"type"`
	OrderID   uint               `json:"order_id"`
	UserID    uint               `json:"user_id"`
	Total     int64              `json:"total"`
	Status    string             `json:"status"`
	CreatedAt int64              `json:"created_at"`
	Items     []ConfirmationLine `json:"items"`
}

// KafkaDispatcher publishes order confirmations to a topic. Delivery is best
// effort: a handful of attempts with backoff, then give up. The checkout has
// already committed by the time this runs.
type KafkaDispatcher struct {
	writer   *kafka.Writer
	log      *slog.Logger
	attempts int
	backoff  time.Duration
}

func NewKafkaDispatcher(brokers []string, topic string, log *slog.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		log:      log,
		attempts: defaultAttempts,
		backoff:  time.Second,
	}
}

func (d *KafkaDispatcher) OrderCommitted(ctx context.Context, order *models.Order) error {
	payload := Confirmation{
		Type:      "order_confirmation",
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
		Items:     make([]ConfirmationLine, 0, len(order.Items)),
	}
	for _, it := range order.Items {
		payload.Items = append(payload.Items, ConfirmationLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal confirmation for order %d: %w", order.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprint(order.UserID)),
		Value: data,
		Time:  time.Now(),
	}

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(attempt-1) * d.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := d.writer.WriteMessages(ctx, msg); err != nil {
			lastErr = err
			d.log.Warn("confirmation_publish_retry", "order_id", order.ID, "attempt", attempt, "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("notify: publish confirmation for order %d: %w", order.ID, lastErr)
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

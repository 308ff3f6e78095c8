package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flash-sale/internal/domain"
	"flash-sale/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PurchaseEvent announces a committed sale so display layers can refresh
// their stock view without polling.
type PurchaseEvent struct {
	OrderID        uuid.UUID `json:"orderId"`
	ProductID      int64     `json:"productId"`
	UserID         string    `json:"userId"`
	Quantity       int       `json:"quantity"`
	RemainingStock int       `json:"remainingStock"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewPurchaseEvent builds the notification for a sold result
func NewPurchaseEvent(order *domain.Order, remaining int) PurchaseEvent {
	return PurchaseEvent{
		OrderID:        order.ID,
		ProductID:      order.ProductID,
		UserID:         order.UserID,
		Quantity:       order.Quantity,
		RemainingStock: remaining,
		CreatedAt:      order.CreatedAt,
	}
}

type Publisher interface {
	PublishPurchase(ctx context.Context, event PurchaseEvent) error
}

// RedisBus publishes and subscribes purchase events over a Redis channel
type RedisBus struct {
	client  redis.UniversalClient
	channel string
	metrics *metrics.Registry
	logger  *zap.Logger
}

func NewRedisBus(client redis.UniversalClient, channel string, registry *metrics.Registry, logger *zap.Logger) *RedisBus {
	return &RedisBus{
		client:  client,
		channel: channel,
		metrics: registry,
		logger:  logger,
	}
}

func (b *RedisBus) PublishPurchase(ctx context.Context, event PurchaseEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode purchase event: %w", err)
	}

	err = b.client.Publish(ctx, b.channel, payload).Err()
	b.metrics.ObservePublish(err)
	if err != nil {
		return fmt.Errorf("failed to publish purchase event: %w", err)
	}

	return nil
}

// Subscribe streams purchase events until ctx is done or cancel is called.
// The returned channel is closed once the subscription ends.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan PurchaseEvent, func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	out := make(chan PurchaseEvent)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event PurchaseEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("Dropping malformed purchase event", zap.Error(err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) PublishPurchase(context.Context, PurchaseEvent) error { return nil }

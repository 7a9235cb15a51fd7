// Package event publishes wishlist lifecycle events for downstream
// consumers (campaign targeting, analytics). Publishing is best-effort by
// contract: the engine logs and continues when the broker is down.
package event

import (
	"context"
	"log/slog"

	"github.com/amourflorals/wishsync/internal/domain"
	"github.com/amourflorals/wishsync/pkg/kafka"
	"github.com/amourflorals/wishsync/pkg/logger"
)

const source = "wishsync"

// Topics.
const (
	TopicWishlistUpdated = "storefront.wishlist.updated"
	TopicWishlistCleared = "storefront.wishlist.cleared"
	TopicItemMoved       = "storefront.wishlist.item_moved"
)

// Event payloads.
type (
	WishlistUpdatedPayload struct {
		UserID   string          `json:"user_id"`
		Wishlist domain.Wishlist `json:"wishlist"`
		Count    int             `json:"count"`
	}

	WishlistClearedPayload struct {
		UserID string `json:"user_id"`
	}

	ItemMovedPayload struct {
		UserID        string `json:"user_id"`
		ProductID     string `json:"product_id"`
		TransactionID string `json:"transaction_id,omitempty"`
	}
)

// Producer publishes wishlist events to Kafka.
type Producer struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewProducer wraps a Kafka producer.
func NewProducer(p *kafka.Producer, log *slog.Logger) *Producer {
	return &Producer{producer: p, logger: log}
}

// WishlistUpdated announces a new canonical wishlist for the user.
func (p *Producer) WishlistUpdated(ctx context.Context, userID string, w domain.Wishlist) error {
	payload := WishlistUpdatedPayload{UserID: userID, Wishlist: w, Count: len(w)}
	return p.publish(ctx, TopicWishlistUpdated, "wishlist.updated", userID, payload)
}

// WishlistCleared announces that the user emptied their wishlist.
func (p *Producer) WishlistCleared(ctx context.Context, userID string) error {
	payload := WishlistClearedPayload{UserID: userID}
	return p.publish(ctx, TopicWishlistCleared, "wishlist.cleared", userID, payload)
}

// ItemMoved announces a wishlist-to-cart transfer.
func (p *Producer) ItemMoved(ctx context.Context, userID, productID, transactionID string) error {
	payload := ItemMovedPayload{UserID: userID, ProductID: productID, TransactionID: transactionID}
	return p.publish(ctx, TopicItemMoved, "wishlist.item_moved", userID, payload)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, userID string, payload any) error {
	evt, err := kafka.NewEvent(eventType, userID, "wishlist", source, payload)
	if err != nil {
		return err
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	return p.producer.Publish(ctx, topic, evt)
}

// Noop is a Publisher that discards everything. Used when the agent runs
// without a broker.
type Noop struct{}

func (Noop) WishlistUpdated(context.Context, string, domain.Wishlist) error { return nil }
func (Noop) WishlistCleared(context.Context, string) error                  { return nil }
func (Noop) ItemMoved(context.Context, string, string, string) error        { return nil }

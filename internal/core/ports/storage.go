package ports

import (
	"context"

	"github.com/tjfontaine/deploywatch/internal/core/domain"
)

// DeliveryStore persists the outcome of every handled webhook delivery.
type DeliveryStore interface {
	// RecordDelivery appends a delivery record. ID and CreatedAt are filled in when empty.
	RecordDelivery(ctx context.Context, rec *domain.DeliveryRecord) error

	// ListDeliveries returns records newest first.
	ListDeliveries(ctx context.Context, opts DeliveryListOptions) ([]*domain.DeliveryRecord, error)

	// Close closes the storage connection
	Close() error
}

// DeliveryListOptions filters ListDeliveries.
type DeliveryListOptions struct {
	Limit      int
	Offset     int
	Outcome    domain.Outcome // empty means all
	DeliveryID string         // empty means all
}

// Ledger remembers delivery IDs for a bounded time so a redelivered webhook
// does not invoke the backend twice.
type Ledger interface {
	// Claim returns true when deliveryID was not seen within ttl and is now held.
	Claim(ctx context.Context, deliveryID string) (bool, error)

	// Release forgets deliveryID so a later redelivery is processed again.
	Release(ctx context.Context, deliveryID string) error

	Close() error
}

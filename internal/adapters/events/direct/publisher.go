// Package direct provides a direct event publisher that writes to storage.
package direct

import (
	"context"
	"fmt"

	"github.com/tjfontaine/deploywatch/internal/core/domain"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

// Publisher implements ports.EventPublisher by writing directly to storage.
// This is the default implementation for single-instance deployments.
type Publisher struct {
	store ports.DeliveryStore
}

// NewPublisher creates a new direct event publisher.
func NewPublisher(store ports.DeliveryStore) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("delivery store required")
	}

	return &Publisher{
		store: store,
	}, nil
}

// Publish records the event's delivery record.
func (p *Publisher) Publish(ctx context.Context, event *domain.DeliveryEvent) error {
	if event == nil || event.Record == nil {
		return fmt.Errorf("delivery event without record")
	}
	return p.store.RecordDelivery(ctx, event.Record)
}

// Close is a no-op; the store is owned by the caller.
func (p *Publisher) Close() error {
	return nil
}

var _ ports.EventPublisher = (*Publisher)(nil)

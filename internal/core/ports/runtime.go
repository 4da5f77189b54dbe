package ports

import (
	"context"

	"github.com/tjfontaine/deploywatch/internal/core/domain"
)

// ContentFetcher retrieves full email content from the email provider.
// Implementations: Resend-compatible REST client.
type ContentFetcher interface {
	FetchEmail(ctx context.Context, emailID string) (*domain.EmailContent, error)
}

// Forwarder delivers an enriched payload to the execution backend exactly once.
// Implementations: Appwrite-compatible executions client.
type Forwarder interface {
	Forward(ctx context.Context, payload *domain.EnrichedPayload) domain.ForwardResult
}

// EventPublisher publishes delivery outcome events.
// Implementations: direct storage (default), Kafka.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.DeliveryEvent) error
	Close() error
}

// Alerter notifies operators of failed forwards.
// Implementations: SES email, log only.
type Alerter interface {
	Notify(ctx context.Context, alert *domain.Alert) error
	Name() string
}

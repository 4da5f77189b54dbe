package alert

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/deploywatch/internal/core/domain"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

// Log writes alerts to the structured log only.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, a *domain.Alert) error {
	l.logger.ErrorContext(ctx, "webhook forward failed",
		slog.String("delivery_id", a.DeliveryID),
		slog.String("event_type", a.EventType),
		slog.String("email_id", a.EmailID),
		slog.Int("status", a.Status),
		slog.String("reason", a.Reason),
	)
	return nil
}

func (l *Log) Name() string {
	return DriverLog
}

var _ ports.Alerter = (*Log)(nil)

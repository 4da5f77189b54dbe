// Package alert notifies operators when a webhook could not be forwarded.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/deploywatch/internal/config"
	"github.com/tjfontaine/deploywatch/internal/core/domain"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

// Driver names accepted by New.
const (
	DriverNone = "none"
	DriverLog  = "log"
	DriverSES  = "ses"
)

const defaultTimeout = 10 * time.Second

// New builds the alerter selected by cfg.Driver, or nil for DriverNone.
func New(ctx context.Context, cfg config.AlertConfig, logger *slog.Logger) (ports.Alerter, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverNone:
		return nil, nil
	case DriverLog:
		return NewLog(logger), nil
	case DriverSES:
		p, err := NewSES(ctx, SESConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.Sender,
			Recipients:      cfg.Recipients,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown alert driver: %s", cfg.Driver)
	}
}

// Dispatcher sends alerts in the background so a slow alert channel never
// delays the webhook response. Each alert gets its own timeout.
type Dispatcher struct {
	alerter ports.Alerter
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher wraps alerter. A nil alerter makes Dispatch a no-op.
func NewDispatcher(alerter ports.Alerter, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{alerter: alerter, timeout: timeout, logger: logger}
}

// Dispatch sends a in a new goroutine. Failures are logged, never returned.
func (d *Dispatcher) Dispatch(a *domain.Alert) {
	if d == nil || d.alerter == nil || a == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("alerter panicked", slog.String("alerter", d.alerter.Name()), slog.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.alerter.Notify(ctx, a); err != nil {
			d.logger.Error("failed to send alert",
				slog.String("alerter", d.alerter.Name()),
				slog.String("delivery_id", a.DeliveryID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until in-flight alerts finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if d == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subject renders the alert subject line.
func Subject(a *domain.Alert) string {
	return fmt.Sprintf("[deploywatch] webhook forward failed (%d) for %s", a.Status, a.DeliveryID)
}

// Body renders the plain-text alert body.
func Body(a *domain.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A webhook delivery could not be forwarded to the execution backend.\n\n")
	fmt.Fprintf(&b, "Delivery:   %s\n", a.DeliveryID)
	fmt.Fprintf(&b, "Event type: %s\n", a.EventType)
	if a.EmailID != "" {
		fmt.Fprintf(&b, "Email id:   %s\n", a.EmailID)
	}
	if a.From != "" {
		fmt.Fprintf(&b, "From:       %s\n", a.From)
	}
	if a.Subject != "" {
		fmt.Fprintf(&b, "Subject:    %s\n", a.Subject)
	}
	fmt.Fprintf(&b, "Status:     %d\n", a.Status)
	fmt.Fprintf(&b, "Reason:     %s\n", a.Reason)
	fmt.Fprintf(&b, "Time:       %s\n", a.OccurredAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "\nThe provider will redeliver according to its retry schedule.\n")
	return b.String()
}

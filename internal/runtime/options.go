package runtime

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/deploywatch/internal/config"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithFileConfig loads configuration from a YAML file plus DEPLOYWATCH_*
// environment overrides.
func WithFileConfig(path string) Option {
	return func(g *Gateway) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithConfig uses an already built configuration. It is validated in New.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		g.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithContentFetcher overrides the email provider client.
func WithContentFetcher(fetcher ports.ContentFetcher) Option {
	return func(g *Gateway) error {
		g.fetcher = fetcher
		return nil
	}
}

// WithForwarder overrides the execution backend client.
func WithForwarder(forwarder ports.Forwarder) Option {
	return func(g *Gateway) error {
		g.forwarder = forwarder
		return nil
	}
}

// WithLedger overrides the dedupe ledger selected by dedupe.driver.
func WithLedger(ledger ports.Ledger) Option {
	return func(g *Gateway) error {
		g.ledger = ledger
		return nil
	}
}

// WithDeliveryStore overrides the delivery log selected by storage.type.
func WithDeliveryStore(store ports.DeliveryStore) Option {
	return func(g *Gateway) error {
		g.store = store
		return nil
	}
}

// WithEventPublisher sets a custom event publisher.
func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(g *Gateway) error {
		g.events = publisher
		return nil
	}
}

// WithAlerter overrides the alerter selected by alert.driver.
func WithAlerter(alerter ports.Alerter) Option {
	return func(g *Gateway) error {
		g.alerter = alerter
		return nil
	}
}

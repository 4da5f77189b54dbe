package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/deploywatch/internal/adapters/events/direct"
	"github.com/tjfontaine/deploywatch/internal/adapters/events/kafka"
	"github.com/tjfontaine/deploywatch/internal/adapters/storage"
	"github.com/tjfontaine/deploywatch/internal/alert"
	"github.com/tjfontaine/deploywatch/internal/backend"
	"github.com/tjfontaine/deploywatch/internal/email"
	"github.com/tjfontaine/deploywatch/internal/ledger"
	"github.com/tjfontaine/deploywatch/internal/pkg/safehttp"
)

// initCollaborators builds every dependency not injected through an option.
func (g *Gateway) initCollaborators(ctx context.Context) error {
	cfg := g.cfg
	block := cfg.Outbound.BlockPrivateNetworks

	if g.fetcher == nil {
		if cfg.Email.APIKey != "" {
			g.fetcher = email.NewClient(cfg.Email.APIKey,
				email.WithBaseURL(cfg.Email.BaseURL),
				email.WithHTTPClient(safehttp.NewClient(cfg.Email.Timeout, block)),
			)
		} else {
			g.logger.Warn("email.api_key not set, events without inline content are forwarded empty")
		}
	}

	if g.forwarder == nil {
		g.forwarder = backend.New(backend.Config{
			Endpoint:   cfg.Backend.Endpoint,
			ProjectID:  cfg.Backend.ProjectID,
			FunctionID: cfg.Backend.FunctionID,
			APIKey:     cfg.Backend.APIKey,
			Timeout:    cfg.Backend.Timeout,
		},
			backend.WithHTTPClient(safehttp.NewClient(0, block)),
			backend.WithLogger(g.logger),
		)
	}

	if g.ledger == nil {
		l, err := ledger.New(cfg.Dedupe)
		if err != nil {
			return fmt.Errorf("create dedupe ledger: %w", err)
		}
		g.ledger = l
	}

	if g.store == nil {
		s, err := storage.NewProvider(cfg.Storage)
		if err != nil {
			return fmt.Errorf("create delivery store: %w", err)
		}
		g.store = s
	}

	if g.events == nil {
		switch cfg.Events.Driver {
		case "kafka":
			p, err := kafka.NewPublisher(kafka.Config{
				Brokers: cfg.Events.Kafka.Brokers,
				Topic:   cfg.Events.Kafka.Topic,
			})
			if err != nil {
				return fmt.Errorf("create kafka event publisher: %w", err)
			}
			g.events = p
		case "direct":
			if g.store != nil {
				p, err := direct.NewPublisher(g.store)
				if err != nil {
					return fmt.Errorf("create direct event publisher: %w", err)
				}
				g.events = p
			}
		}
	}

	if g.alerter == nil {
		a, err := alert.New(ctx, cfg.Alert, g.logger)
		if err != nil {
			return fmt.Errorf("create alerter: %w", err)
		}
		g.alerter = a
	}

	g.logger.Info("collaborators ready",
		slog.Bool("enrichment", g.fetcher != nil),
		slog.String("dedupe", cfg.Dedupe.Driver),
		slog.String("storage", cfg.Storage.Type),
		slog.Bool("events", g.events != nil),
		slog.Bool("alerts", g.alerter != nil),
	)
	return nil
}

// Package runtime provides the Gateway struct and lifecycle management for
// the inbound webhook gateway.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/tjfontaine/deploywatch/internal/alert"
	"github.com/tjfontaine/deploywatch/internal/auth"
	"github.com/tjfontaine/deploywatch/internal/config"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
	"github.com/tjfontaine/deploywatch/internal/frontdoor/admin"
	"github.com/tjfontaine/deploywatch/internal/frontdoor/webhook"
	"github.com/tjfontaine/deploywatch/internal/inbound"
	"github.com/tjfontaine/deploywatch/internal/server"
	"github.com/tjfontaine/deploywatch/internal/signature"
)

// Gateway wires configuration into the webhook pipeline and owns the HTTP
// server. It can be embedded in larger applications or run standalone.
type Gateway struct {
	cfg *config.Config

	// Collaborators, injected via options or built from cfg.
	fetcher   ports.ContentFetcher
	forwarder ports.Forwarder
	ledger    ports.Ledger
	store     ports.DeliveryStore
	events    ports.EventPublisher
	alerter   ports.Alerter

	alerts  *alert.Dispatcher
	webhook *webhook.Handler
	router  http.Handler
	server  *http.Server
	addr    net.Addr
	logger  *slog.Logger

	mu sync.Mutex
}

// New creates a Gateway with the given options. Configuration is required;
// every other collaborator defaults to what the configuration selects.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.cfg == nil {
		return nil, fmt.Errorf("config required (use WithFileConfig or WithConfig)")
	}
	if err := gw.cfg.Validate(); err != nil {
		return nil, err
	}

	var secret signature.Secret
	if !gw.cfg.Unsigned() {
		s, err := signature.ParseSecret(gw.cfg.Webhook.Secret)
		if err != nil {
			return nil, fmt.Errorf("webhook secret: %w", err)
		}
		secret = s
	} else {
		gw.logger.Warn("webhook signature verification is disabled")
	}

	if err := gw.initCollaborators(context.Background()); err != nil {
		gw.closeResources()
		return nil, err
	}

	gw.alerts = alert.NewDispatcher(gw.alerter, gw.cfg.Alert.Timeout, gw.logger)

	handlerOpts := []webhook.Option{
		webhook.WithEnricher(inbound.NewNormalizer(gw.fetcher, gw.logger)),
		webhook.WithAlerts(gw.alerts),
		webhook.WithLogger(gw.logger),
	}
	if gw.ledger != nil {
		handlerOpts = append(handlerOpts, webhook.WithLedger(gw.ledger))
	}
	if gw.events != nil {
		handlerOpts = append(handlerOpts, webhook.WithPublisher(gw.events))
	}
	gw.webhook = webhook.NewHandler(webhook.Config{
		Secret:       secret,
		Tolerance:    gw.cfg.Webhook.Tolerance,
		EventType:    gw.cfg.Webhook.EventType,
		MaxBodyBytes: gw.cfg.Webhook.MaxBodyBytes,
	}, gw.forwarder, handlerOpts...)

	gw.router = gw.buildRouter()
	return gw, nil
}

func (g *Gateway) buildRouter() http.Handler {
	serviceName := ""
	if g.cfg.Telemetry.Enabled {
		serviceName = g.cfg.Telemetry.ServiceName
	}
	srv := server.New(server.Options{
		Port:           g.cfg.Server.Port,
		Logger:         g.logger,
		RequestTimeout: g.cfg.Server.RequestTimeout,
		ServiceName:    serviceName,
	})

	g.webhook.Routes(srv.Router, g.cfg.Webhook.Path)
	g.logger.Info("registered webhook handler", slog.String("path", g.cfg.Webhook.Path))

	authenticator := auth.NewAuthenticator(g.cfg.Admin.APIKeys)
	if authenticator.Enabled() {
		admin.NewHandler(g.store, g.logger).Routes(srv.Router, authenticator)
		g.logger.Info("registered admin API", slog.String("path", "/admin"))
	}

	return srv.Router
}

// Handler returns the fully wired HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Start binds the configured port and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.server != nil {
		return fmt.Errorf("gateway already started")
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", fmt.Sprintf(":%d", g.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	g.addr = ln.Addr()

	// No WriteTimeout: the per-request timeout middleware bounds handlers.
	g.server = &http.Server{
		Handler:           g.router,
		ReadHeaderTimeout: g.cfg.Server.RequestTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		g.logger.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	g.logger.Info("gateway started",
		slog.Int("port", g.cfg.Server.Port),
		slog.String("webhook_path", g.cfg.Webhook.Path),
	)
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addr
}

// Shutdown stops accepting requests, drains in-flight deliveries and
// background work, then closes every collaborator.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	var errs []error
	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := g.webhook.Wait(ctx); err != nil {
		g.logger.Warn("delivery events still pending at shutdown", slog.String("error", err.Error()))
	}
	if err := g.alerts.Wait(ctx); err != nil {
		g.logger.Warn("alerts still pending at shutdown", slog.String("error", err.Error()))
	}

	errs = append(errs, g.closeResources()...)

	g.logger.Info("gateway shutdown complete")
	return errors.Join(errs...)
}

// closeResources closes publishers before the store they may write to.
func (g *Gateway) closeResources() []error {
	var errs []error
	closeOne := func(name string, c interface{ Close() error }) {
		if err := c.Close(); err != nil {
			g.logger.Error("failed to close "+name, slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}

	if g.events != nil {
		closeOne("events", g.events)
	}
	if g.ledger != nil {
		closeOne("ledger", g.ledger)
	}
	if g.store != nil {
		closeOne("storage", g.store)
	}
	return errs
}

// Package webhook serves the inbound webhook endpoint: it authenticates a
// provider delivery, classifies it, enriches recognized events and forwards
// them to the execution backend exactly once per delivery attempt.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/deploywatch/internal/alert"
	"github.com/tjfontaine/deploywatch/internal/core/domain"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
	"github.com/tjfontaine/deploywatch/internal/inbound"
	"github.com/tjfontaine/deploywatch/internal/server"
	"github.com/tjfontaine/deploywatch/internal/signature"
	"github.com/tjfontaine/deploywatch/internal/telemetry"
)

const (
	defaultMaxBodyBytes = 1 << 20
	publishTimeout      = 5 * time.Second
)

// ParseFunc decodes a raw body into an envelope.
type ParseFunc func(raw []byte, eventType string) (*domain.Envelope, error)

// Enricher resolves email content for a parsed envelope.
type Enricher interface {
	Enrich(ctx context.Context, env *domain.Envelope, headers domain.DeliveryHeaders, raw []byte) *domain.EnrichedPayload
}

// Config holds the immutable verification and classification settings.
type Config struct {
	// Secret verifies signatures. Nil means permissive mode: no verification.
	Secret       signature.Secret
	Tolerance    time.Duration
	EventType    string
	MaxBodyBytes int64
}

// Handler is the inbound webhook endpoint.
type Handler struct {
	cfg       Config
	forwarder ports.Forwarder
	enricher  Enricher
	parse     ParseFunc
	ledger    ports.Ledger
	publisher ports.EventPublisher
	alerts    *alert.Dispatcher
	logger    *slog.Logger
	now       func() time.Time

	wg sync.WaitGroup
}

// Option configures a Handler.
type Option func(*Handler)

// WithEnricher sets the content enricher. Without one, events are forwarded as received.
func WithEnricher(e Enricher) Option {
	return func(h *Handler) { h.enricher = e }
}

// WithParser replaces the body parser.
func WithParser(p ParseFunc) Option {
	return func(h *Handler) { h.parse = p }
}

// WithLedger enables delivery de-duplication.
func WithLedger(l ports.Ledger) Option {
	return func(h *Handler) { h.ledger = l }
}

// WithPublisher sets where delivery outcomes are published.
func WithPublisher(p ports.EventPublisher) Option {
	return func(h *Handler) { h.publisher = p }
}

// WithAlerts sets the dispatcher notified of failed forwards.
func WithAlerts(d *alert.Dispatcher) Option {
	return func(h *Handler) { h.alerts = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithClock sets the clock used for timestamp tolerance.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates the webhook handler.
func NewHandler(cfg Config, forwarder ports.Forwarder, opts ...Option) *Handler {
	if cfg.EventType == "" {
		cfg.EventType = domain.EventTypeEmailReceived
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	h := &Handler{
		cfg:       cfg,
		forwarder: forwarder,
		parse:     inbound.Parse,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the endpoint at path on r.
func (h *Handler) Routes(r chi.Router, path string) {
	r.Get(path, h.HandleStatus)
	r.Post(path, h.HandleDelivery)
}

// HandleStatus answers liveness probes.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

// delivery is the state of one POST as it moves through the pipeline.
type delivery struct {
	w         http.ResponseWriter
	r         *http.Request
	start     time.Time
	headers   domain.DeliveryHeaders
	record    domain.DeliveryRecord
	email     *domain.EmailReceived
	held      bool
	responded bool
}

// HandleDelivery processes one webhook delivery.
func (h *Handler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	d := &delivery{w: w, r: r, start: h.now()}
	defer func() {
		if rec := recover(); rec != nil {
			// The panic value may echo payload content, so it is not logged.
			h.logger.ErrorContext(r.Context(), "webhook handler panicked",
				slog.String("delivery_id", d.headers.ID),
				slog.String("event_type", d.record.EventType),
				slog.String("stack", string(debug.Stack())),
			)
			if d.held {
				h.release(r.Context(), d.headers.ID)
			}
			h.finish(d, domain.OutcomeFailed, domain.NewAPIError(domain.ErrorTypeInternal, "internal server error"))
		}
	}()

	// RECEIVE: the body is not touched until all three headers are present.
	d.headers = domain.DeliveryHeadersFrom(r.Header)
	d.record.DeliveryID = d.headers.ID
	server.AddLogField(r.Context(), "delivery_id", d.headers.ID)
	if !d.headers.Complete() {
		h.finish(d, domain.OutcomeRejected, domain.ErrMissingAuthHeaders())
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.finish(d, domain.OutcomeInvalid, domain.ErrPayloadTooLarge(h.cfg.MaxBodyBytes))
			return
		}
		h.finish(d, domain.OutcomeInvalid, domain.ErrInvalidPayload(err))
		return
	}

	// VERIFY
	if h.cfg.Secret != nil {
		if err := signature.Verify(body, d.headers.ID, d.headers.Timestamp, d.headers.Signature, h.cfg.Secret); err != nil {
			h.finish(d, domain.OutcomeRejected, domain.ErrInvalidSignature(err))
			return
		}
		if err := signature.CheckTimestamp(d.headers.Timestamp, h.now(), h.cfg.Tolerance); err != nil {
			h.finish(d, domain.OutcomeRejected, domain.ErrInvalidSignature(err))
			return
		}
	}

	// PARSE
	env, err := h.parse(body, h.cfg.EventType)
	if err != nil {
		h.finish(d, domain.OutcomeInvalid, err)
		return
	}
	d.record.EventType = env.Type
	server.AddLogField(r.Context(), "event_type", env.Type)

	// CLASSIFY
	if env.Kind != domain.KindEmailReceived || env.Email == nil {
		h.finish(d, domain.OutcomeIgnored, nil)
		return
	}
	d.email = env.Email
	d.record.EmailID = env.Email.EmailID

	// DEDUPE
	held, duplicate := h.claim(r.Context(), d)
	d.held = held
	if duplicate {
		server.AddLogField(r.Context(), "deduplicated", "true")
		h.finish(d, domain.OutcomeDuplicate, nil)
		return
	}

	// ENRICH: the fetch outlives a dropped inbound connection and is
	// bounded by the email client's own timeout.
	payload := &domain.EnrichedPayload{Envelope: env, AuthHeaders: d.headers, RawBody: body}
	if h.enricher != nil {
		payload = h.enricher.Enrich(context.WithoutCancel(r.Context()), env, d.headers, body)
	}
	d.record.ContentFetchFailed = payload.ContentFetchFailed
	if payload.ContentFetchFailed {
		server.AddLogField(r.Context(), "content_fetch_failed", "true")
	}

	// FORWARD
	result := h.forward(r.Context(), d, payload)
	if !result.Accepted {
		if d.held {
			h.release(r.Context(), d.headers.ID)
		}
		err := result.Err
		if err == nil {
			err = domain.ErrBackendRejected(result.Status)
		}
		apiErr := domain.AsAPIError(err)
		if result.Status != 0 && apiErr.HTTPStatusCode() != result.Status {
			apiErr = domain.NewAPIError(apiErr.Type, apiErr.Message).WithStatusCode(result.Status).WithCause(apiErr.Err)
		}
		h.notify(d, apiErr)
		h.finish(d, domain.OutcomeFailed, apiErr)
		return
	}

	h.finish(d, domain.OutcomeForwarded, nil)
}

func (h *Handler) forward(ctx context.Context, d *delivery, payload *domain.EnrichedPayload) domain.ForwardResult {
	ctx, span := telemetry.Tracer().Start(ctx, "webhook.forward",
		trace.WithAttributes(telemetry.DeliveryAttributes(d.headers.ID, d.record.EventType, d.record.EmailID)...),
		trace.WithAttributes(telemetry.ContentFetchKey.Bool(payload.ContentFetchFailed)),
	)
	defer span.End()

	result := h.forwarder.Forward(ctx, payload)
	span.SetAttributes(telemetry.BackendStatusKey.Int(result.Status))
	if !result.Accepted {
		span.SetStatus(codes.Error, "forward failed")
	}
	return result
}

// claim reports whether the delivery id is now held by this request and
// whether it was already claimed. Ledger errors fail open.
func (h *Handler) claim(ctx context.Context, d *delivery) (held, duplicate bool) {
	if h.ledger == nil {
		return false, false
	}
	ok, err := h.ledger.Claim(ctx, d.headers.ID)
	if err != nil {
		h.logger.WarnContext(ctx, "dedupe ledger unavailable, processing delivery",
			slog.String("delivery_id", d.headers.ID),
			slog.String("error", err.Error()),
		)
		return false, false
	}
	return ok, !ok
}

func (h *Handler) release(ctx context.Context, id string) {
	if err := h.ledger.Release(context.WithoutCancel(ctx), id); err != nil {
		h.logger.WarnContext(ctx, "failed to release delivery claim",
			slog.String("delivery_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (h *Handler) notify(d *delivery, apiErr *domain.APIError) {
	a := &domain.Alert{
		DeliveryID: d.headers.ID,
		EventType:  d.record.EventType,
		EmailID:    d.record.EmailID,
		Status:     apiErr.HTTPStatusCode(),
		Reason:     apiErr.Error(),
		OccurredAt: h.now(),
	}
	if d.email != nil {
		a.From = d.email.From
		a.Subject = d.email.Subject
	}
	h.alerts.Dispatch(a)
}

// finish writes the response, then records the outcome in the background.
func (h *Handler) finish(d *delivery, outcome domain.Outcome, err error) {
	if d.responded {
		return
	}
	d.responded = true

	status := http.StatusOK
	body := map[string]any{"success": true}
	if err != nil {
		apiErr := domain.AsAPIError(err)
		status = apiErr.HTTPStatusCode()
		body = map[string]any{"success": false, "error": apiErr.Message}
		d.record.Error = apiErr.Error()
		server.AddError(d.r.Context(), apiErr)
	}
	server.AddLogField(d.r.Context(), "outcome", string(outcome))
	server.WriteJSON(d.w, status, body)

	d.record.Outcome = outcome
	d.record.StatusCode = status
	d.record.Duration = h.now().Sub(d.start)
	h.publish(d.r.Context(), d.record)
}

func (h *Handler) publish(ctx context.Context, rec domain.DeliveryRecord) {
	if h.publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		event := &domain.DeliveryEvent{Record: &rec, Timestamp: h.now()}
		if err := h.publisher.Publish(ctx, event); err != nil {
			h.logger.WarnContext(ctx, "failed to publish delivery outcome",
				slog.String("delivery_id", rec.DeliveryID),
				slog.String("outcome", string(rec.Outcome)),
				slog.String("status", strconv.Itoa(rec.StatusCode)),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until background outcome publishing has drained or ctx ends.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

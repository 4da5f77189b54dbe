// Package backend delivers enriched webhook payloads to the execution backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tjfontaine/deploywatch/internal/core/domain"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

const (
	headerProject = "X-Appwrite-Project"
	headerKey     = "X-Appwrite-Key"

	// maxResponseBody bounds how much of a backend reply is kept for logs.
	maxResponseBody = 64 << 10

	executionFailed = "failed"
)

// Config configures a Forwarder.
type Config struct {
	Endpoint   string
	ProjectID  string
	FunctionID string
	APIKey     string
	Timeout    time.Duration
}

// Forwarder posts payloads to {endpoint}/functions/{function_id}/executions.
// It makes exactly one attempt per call; retries are the provider's job.
type Forwarder struct {
	url       string
	projectID string
	apiKey    string
	timeout   time.Duration
	client    *http.Client
	logger    *slog.Logger
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithHTTPClient sets the HTTP client used for outbound calls.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Forwarder) {
		f.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// New creates a Forwarder.
func New(cfg Config, opts ...Option) *Forwarder {
	f := &Forwarder{
		url:       ExecutionsURL(cfg.Endpoint, cfg.FunctionID),
		projectID: cfg.ProjectID,
		apiKey:    cfg.APIKey,
		timeout:   cfg.Timeout,
		client:    &http.Client{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ExecutionsURL builds the function executions URL.
func ExecutionsURL(endpoint, functionID string) string {
	return strings.TrimRight(endpoint, "/") + "/functions/" + functionID + "/executions"
}

type executionRequest struct {
	Body  string `json:"body"`
	Async bool   `json:"async"`
}

type executionResponse struct {
	ID                 string `json:"$id"`
	Status             string `json:"status"`
	ResponseStatusCode int    `json:"responseStatusCode"`
	Errors             string `json:"errors"`
}

// Forward delivers payload once. The outbound call is detached from ctx
// cancellation so a client disconnect cannot abort an in-flight forward,
// but it is still bounded by the configured timeout.
func (f *Forwarder) Forward(ctx context.Context, payload *domain.EnrichedPayload) domain.ForwardResult {
	ctx = context.WithoutCancel(ctx)
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	inner, err := json.Marshal(payload)
	if err != nil {
		return unavailable(fmt.Errorf("marshal payload: %w", err))
	}
	body, err := json.Marshal(executionRequest{Body: string(inner), Async: false})
	if err != nil {
		return unavailable(fmt.Errorf("marshal execution: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return unavailable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerProject, f.projectID)
	if f.apiKey != "" {
		req.Header.Set(headerKey, f.apiKey)
	}
	payload.AuthHeaders.Apply(req.Header)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return unavailable(fmt.Errorf("backend request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return unavailable(fmt.Errorf("read response: %w", err))
	}

	f.logger.DebugContext(ctx, "backend responded",
		slog.String("delivery_id", payload.AuthHeaders.ID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return rejected(string(respBody), domain.ErrBackendRejected(resp.StatusCode))
	}

	// A synchronous execution that ran and failed still answers 2xx.
	var exec executionResponse
	if json.Unmarshal(respBody, &exec) == nil && exec.Status == executionFailed {
		cause := fmt.Errorf("execution %s failed: %s", exec.ID, exec.Errors)
		return rejected(string(respBody), domain.ErrBackendRejected(resp.StatusCode).WithCause(cause))
	}

	return domain.ForwardResult{Accepted: true, Status: http.StatusOK, Body: string(respBody)}
}

func rejected(body string, err error) domain.ForwardResult {
	return domain.ForwardResult{Status: http.StatusBadGateway, Body: body, Err: err}
}

func unavailable(err error) domain.ForwardResult {
	return domain.ForwardResult{Status: http.StatusInternalServerError, Err: domain.ErrBackendUnavailable(err)}
}

var _ ports.Forwarder = (*Forwarder)(nil)

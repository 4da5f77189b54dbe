// Package email is a client for the email provider's REST API.
package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/deploywatch/internal/core/domain"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

const (
	defaultBaseURL = "https://api.resend.com"
	maxErrorBody   = 4 << 10
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client fetches email content by ID.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ ports.ContentFetcher = (*Client)(nil)

// NewClient creates a new email API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errorResponse is the provider's error body.
type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// FetchEmail retrieves the text and HTML body of a stored email.
func (c *Client) FetchEmail(ctx context.Context, emailID string) (*domain.EmailContent, error) {
	if strings.TrimSpace(emailID) == "" {
		return nil, domain.ErrContentFetchFailed(0, errors.New("email id is empty"))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/emails/"+url.PathEscape(emailID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrContentFetchFailed(0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, domain.ErrContentFetchFailed(resp.StatusCode, fmt.Errorf("%s: %s", apiErr.Name, apiErr.Message))
		}
		return nil, domain.ErrContentFetchFailed(resp.StatusCode, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var content domain.EmailContent
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return nil, domain.ErrContentFetchFailed(resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	return &content, nil
}

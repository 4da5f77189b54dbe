package inbound

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tjfontaine/deploywatch/internal/core/domain"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

var errNoFetcher = errors.New("email content fetcher not configured")

// Normalizer turns a verified envelope into the payload the backend expects.
type Normalizer struct {
	fetcher ports.ContentFetcher
	logger  *slog.Logger
}

// NewNormalizer creates a normalizer. fetcher may be nil, in which case
// events without inline content are forwarded with empty text and html.
func NewNormalizer(fetcher ports.ContentFetcher, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{fetcher: fetcher, logger: logger}
}

// Enrich resolves text/html for recognized events and attaches the delivery
// headers and raw body. It never fails: a content fetch error degrades to
// empty content and sets ContentFetchFailed.
func (n *Normalizer) Enrich(ctx context.Context, env *domain.Envelope, headers domain.DeliveryHeaders, raw []byte) *domain.EnrichedPayload {
	payload := &domain.EnrichedPayload{
		Envelope:    env,
		AuthHeaders: headers,
		RawBody:     raw,
	}
	if env.Kind != domain.KindEmailReceived || env.Email == nil || env.Email.HasContent() {
		return payload
	}

	email := env.Email
	content, err := n.fetch(ctx, email.EmailID)
	if err != nil {
		n.logger.WarnContext(ctx, "email content fetch failed, forwarding without content",
			slog.String("delivery_id", headers.ID),
			slog.String("email_id", email.EmailID),
			slog.String("error", err.Error()),
		)
		email.Text, email.HTML = "", ""
		payload.ContentFetchFailed = true
		return payload
	}

	email.Text = content.Text
	email.HTML = content.HTML
	if backfill(email, "subject") {
		email.Subject = content.Subject
	}
	if backfill(email, "from") {
		email.From = content.From
	}
	return payload
}

// backfill reports whether member may take the fetched value: it is empty
// and the event did not carry it in a non-string shape.
func backfill(email *domain.EmailReceived, member string) bool {
	if _, kept := email.Extra[member]; kept {
		return false
	}
	switch member {
	case "subject":
		return email.Subject == ""
	case "from":
		return email.From == ""
	}
	return false
}

func (n *Normalizer) fetch(ctx context.Context, emailID string) (content *domain.EmailContent, err error) {
	if n.fetcher == nil {
		return nil, errNoFetcher
	}
	if emailID == "" {
		return nil, domain.ErrContentFetchFailed(0, errors.New("event has no email_id"))
	}
	defer func() {
		// Fetcher panics degrade like any other fetch failure.
		if r := recover(); r != nil {
			content, err = nil, domain.ErrContentFetchFailed(0, errors.New("content fetcher panicked"))
		}
	}()
	content, err = n.fetcher.FetchEmail(ctx, emailID)
	if err == nil && content == nil {
		err = domain.ErrContentFetchFailed(0, errors.New("empty response"))
	}
	return content, err
}

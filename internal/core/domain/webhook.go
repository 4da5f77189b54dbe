package domain

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// EventTypeEmailReceived is the only event kind forwarded to the backend by default.
const EventTypeEmailReceived = "email.received"

// Canonical delivery header names. They are also the names forwarded downstream.
const (
	HeaderDeliveryID        = "svix-id"
	HeaderDeliveryTimestamp = "svix-timestamp"
	HeaderDeliverySignature = "svix-signature"
)

// Accepted aliases, checked in order after the canonical names.
var (
	deliveryIDHeaders        = []string{HeaderDeliveryID, "webhook-id", "delivery-id"}
	deliveryTimestampHeaders = []string{HeaderDeliveryTimestamp, "webhook-timestamp", "delivery-timestamp"}
	deliverySignatureHeaders = []string{HeaderDeliverySignature, "webhook-signature", "delivery-signature"}
)

// DeliveryHeaders are the three values forming the provider's authentication scheme.
type DeliveryHeaders struct {
	ID        string `json:"svix-id"`
	Timestamp string `json:"svix-timestamp"`
	Signature string `json:"svix-signature"`
}

// DeliveryHeadersFrom extracts delivery headers, accepting the svix-, webhook- and delivery- prefixes.
func DeliveryHeadersFrom(h http.Header) DeliveryHeaders {
	return DeliveryHeaders{
		ID:        firstHeader(h, deliveryIDHeaders),
		Timestamp: firstHeader(h, deliveryTimestampHeaders),
		Signature: firstHeader(h, deliverySignatureHeaders),
	}
}

// Complete reports whether all three headers are present and non-empty.
func (d DeliveryHeaders) Complete() bool {
	return d.ID != "" && d.Timestamp != "" && d.Signature != ""
}

// Apply sets the canonical headers on an outbound request header map.
func (d DeliveryHeaders) Apply(h http.Header) {
	h.Set(HeaderDeliveryID, d.ID)
	h.Set(HeaderDeliveryTimestamp, d.Timestamp)
	h.Set(HeaderDeliverySignature, d.Signature)
}

func firstHeader(h http.Header, names []string) string {
	for _, name := range names {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// EnvelopeKind tags a parsed webhook envelope.
type EnvelopeKind int

const (
	// KindIgnored is a well-formed event of a type the gateway does not forward.
	KindIgnored EnvelopeKind = iota
	// KindEmailReceived is a recognized inbound email event.
	KindEmailReceived
)

// String returns the kind name.
func (k EnvelopeKind) String() string {
	switch k {
	case KindEmailReceived:
		return "email_received"
	default:
		return "ignored"
	}
}

// Envelope is a parsed webhook body. Exactly one of the variants applies:
// Kind == KindEmailReceived carries Email, Kind == KindIgnored carries only Type.
type Envelope struct {
	Kind  EnvelopeKind
	Type  string
	Email *EmailReceived

	// Fields holds every top-level member except data, preserved for forwarding.
	Fields map[string]json.RawMessage
}

// EmailReceived is the data object of an email.received event.
// Known members are decoded; Extra keeps everything else verbatim.
type EmailReceived struct {
	EmailID string `json:"email_id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`

	Extra map[string]json.RawMessage `json:"-"`
}

// HasContent reports whether the webhook already carried a body.
func (e *EmailReceived) HasContent() bool {
	return e.Text != "" || e.HTML != ""
}

// MarshalJSON merges the known members over Extra.
func (e *EmailReceived) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+5)
	for k, v := range e.Extra {
		out[k] = v
	}
	if e.EmailID != "" {
		out["email_id"] = e.EmailID
	}
	if e.From != "" {
		out["from"] = e.From
	}
	if e.Subject != "" {
		out["subject"] = e.Subject
	}
	out["text"] = e.Text
	out["html"] = e.HTML
	return json.Marshal(out)
}

// EmailContent is the body of an email as returned by the provider's REST API.
type EmailContent struct {
	ID      string   `json:"id"`
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html"`
}

// EnrichedPayload is what gets forwarded to the execution backend.
type EnrichedPayload struct {
	Envelope    *Envelope
	AuthHeaders DeliveryHeaders
	RawBody     []byte

	// ContentFetchFailed is set when enrichment degraded to empty content.
	ContentFetchFailed bool
}

// MarshalJSON renders the original envelope with resolved content, plus
// authHeaders and rawBody so the consumer can re-verify the signature.
func (p *EnrichedPayload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Envelope.Fields)+3)
	for k, v := range p.Envelope.Fields {
		out[k] = v
	}
	out["type"] = p.Envelope.Type
	if p.Envelope.Email != nil {
		out["data"] = p.Envelope.Email
	}
	out["authHeaders"] = p.AuthHeaders
	out["rawBody"] = string(p.RawBody)
	return json.Marshal(out)
}

// ForwardResult is the outcome of delivering to the execution backend.
type ForwardResult struct {
	Accepted bool
	Status   int
	Body     string

	// Err explains a rejected forward; nil when Accepted.
	Err error
}

// Outcome classifies how a delivery ended.
type Outcome string

const (
	OutcomeForwarded Outcome = "forwarded"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeFailed    Outcome = "failed"
)

// DeliveryRecord is one row of the delivery log.
type DeliveryRecord struct {
	ID                 string        `json:"id"`
	DeliveryID         string        `json:"delivery_id"`
	EventType          string        `json:"event_type,omitempty"`
	EmailID            string        `json:"email_id,omitempty"`
	Outcome            Outcome       `json:"outcome"`
	StatusCode         int           `json:"status_code"`
	ContentFetchFailed bool          `json:"content_fetch_failed"`
	Error              string        `json:"error,omitempty"`
	Duration           time.Duration `json:"duration_ns"`
	CreatedAt          time.Time     `json:"created_at"`
}

// DeliveryEvent is published after every handled delivery.
type DeliveryEvent struct {
	Record    *DeliveryRecord `json:"record"`
	Timestamp time.Time       `json:"timestamp"`
}

// Alert describes a failed forward worth notifying a human about.
type Alert struct {
	DeliveryID string
	EventType  string
	EmailID    string
	From       string
	Subject    string
	Status     int
	Reason     string
	OccurredAt time.Time
}

// Package inbound parses provider webhook bodies and enriches recognized
// events with the full email content before they are forwarded.
package inbound

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tjfontaine/deploywatch/internal/core/domain"
)

var (
	errMissingType = errors.New("missing event type")
	errBadData     = errors.New("data must be an object")
)

// Parse decodes raw into an Envelope. eventType is the one kind that is
// recognized; every other well-formed type yields KindIgnored.
// Malformed bodies return an invalid_payload *domain.APIError.
func Parse(raw []byte, eventType string) (*domain.Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, domain.ErrInvalidPayload(err)
	}
	if fields == nil {
		return nil, domain.ErrInvalidPayload(errors.New("body is null"))
	}

	var typ string
	if rawType, ok := fields["type"]; ok {
		if err := json.Unmarshal(rawType, &typ); err != nil {
			return nil, domain.ErrInvalidPayload(fmt.Errorf("type: %w", err))
		}
	}
	if typ == "" {
		return nil, domain.ErrInvalidPayload(errMissingType)
	}

	rawData, hasData := fields["data"]
	delete(fields, "type")
	delete(fields, "data")

	env := &domain.Envelope{
		Kind:   domain.KindIgnored,
		Type:   typ,
		Fields: fields,
	}
	if typ != eventType {
		return env, nil
	}

	if !hasData || !isObject(rawData) {
		return nil, domain.ErrInvalidPayload(errBadData)
	}
	email, err := decodeEmail(rawData)
	if err != nil {
		return nil, domain.ErrInvalidPayload(err)
	}
	env.Kind = domain.KindEmailReceived
	env.Email = email
	return env, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// known members of the data object; everything else lands in Extra
var knownEmailFields = []string{"email_id", "from", "subject", "text", "html"}

func decodeEmail(raw json.RawMessage) (*domain.EmailReceived, error) {
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}

	email := &domain.EmailReceived{}
	targets := map[string]*string{
		"email_id": &email.EmailID,
		"from":     &email.From,
		"subject":  &email.Subject,
		"text":     &email.Text,
		"html":     &email.HTML,
	}
	for _, name := range knownEmailFields {
		v, ok := extra[name]
		if !ok {
			continue
		}
		s, isString := stringValue(v)
		if !isString {
			// Leave non-string shapes (e.g. from as an object) untouched.
			continue
		}
		*targets[name] = s
		delete(extra, name)
	}
	email.Extra = extra
	return email, nil
}

// stringValue decodes v when it is a JSON string; null counts as "".
func stringValue(v json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(v)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false
	}
	return s, true
}

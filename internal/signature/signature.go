// Package signature verifies Svix-style webhook signatures.
//
// The signed content is "{id}.{timestamp}.{body}" where body is the exact
// request bytes. The signature is base64(HMAC-SHA256(key, content)) and the
// header carries one or more space-separated "version,signature" tokens so
// providers can rotate keys without downtime.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SecretPrefix is the scheme tag providers prepend to webhook secrets.
const SecretPrefix = "whsec_"

// Version is the signature version emitted by Sign.
const Version = "v1"

var (
	// ErrNoSecret is returned by ParseSecret for an empty secret.
	ErrNoSecret = errors.New("webhook secret is empty")

	// ErrNoMatch is returned when no signature candidate matched.
	ErrNoMatch = errors.New("no matching signature")

	// ErrInvalidTimestamp is returned when the delivery timestamp is not a unix time.
	ErrInvalidTimestamp = errors.New("invalid delivery timestamp")

	// ErrTimestampOutOfRange is returned when the timestamp is outside the allowed tolerance.
	ErrTimestampOutOfRange = errors.New("delivery timestamp outside tolerance")
)

// Secret is a decoded HMAC key.
type Secret []byte

// ParseSecret strips the whsec_ tag and base64-decodes the remainder.
func ParseSecret(s string) (Secret, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, SecretPrefix)
	if s == "" {
		return nil, ErrNoSecret
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	if len(key) == 0 {
		return nil, ErrNoSecret
	}
	return Secret(key), nil
}

// String returns the secret in whsec_ form.
func (s Secret) String() string {
	return SecretPrefix + base64.StdEncoding.EncodeToString(s)
}

// Compute returns the raw HMAC over the canonical content.
func Compute(id, timestamp string, body []byte, secret Secret) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id))
	mac.Write([]byte{'.'})
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign returns a single "v1,<base64>" header token.
func Sign(id, timestamp string, body []byte, secret Secret) string {
	return Version + "," + base64.StdEncoding.EncodeToString(Compute(id, timestamp, body, secret))
}

// Verify checks header against the expected signature for body.
// It succeeds if any candidate token matches. Malformed tokens never match
// and never cause an error of their own.
func Verify(body []byte, id, timestamp, header string, secret Secret) error {
	if len(secret) == 0 {
		return ErrNoSecret
	}
	expected := []byte(base64.StdEncoding.EncodeToString(Compute(id, timestamp, body, secret)))

	matched := false
	for _, candidate := range Candidates(header) {
		// No early exit so the work done does not depend on which token matched.
		if hmac.Equal(expected, []byte(candidate)) {
			matched = true
		}
	}
	if !matched {
		return ErrNoMatch
	}
	return nil
}

// Candidates extracts the signature portion of each "version,signature" token.
// Tokens without a comma or with an empty signature are skipped.
func Candidates(header string) []string {
	fields := strings.Fields(header)
	out := make([]string, 0, len(fields))
	for _, token := range fields {
		_, sig, ok := strings.Cut(token, ",")
		if !ok || sig == "" {
			continue
		}
		out = append(out, sig)
	}
	return out
}

// CheckTimestamp rejects timestamps further than tolerance from now.
// A non-positive tolerance disables the check.
func CheckTimestamp(timestamp string, now time.Time, tolerance time.Duration) error {
	if tolerance <= 0 {
		return nil
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimestamp, timestamp)
	}
	ts := time.Unix(secs, 0)
	if now.Sub(ts) > tolerance || ts.Sub(now) > tolerance {
		return ErrTimestampOutOfRange
	}
	return nil
}

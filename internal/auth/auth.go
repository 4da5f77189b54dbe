// Package auth validates the API keys that guard the admin endpoints.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/tjfontaine/deploywatch/internal/config"
)

// Key is a configured admin API key, identified only by its hash.
type Key struct {
	KeyHash     string
	Description string
}

// Authenticator validates API keys against configured SHA-256 hashes.
type Authenticator struct {
	keys []Key
}

// NewAuthenticator creates a new authenticator from configured key hashes.
func NewAuthenticator(keys []config.APIKeyConfig) *Authenticator {
	auth := &Authenticator{}
	for _, k := range keys {
		auth.keys = append(auth.keys, Key{
			KeyHash:     strings.ToLower(strings.TrimSpace(k.KeyHash)),
			Description: k.Description,
		})
	}
	return auth
}

// Enabled reports whether any key is configured.
func (a *Authenticator) Enabled() bool {
	return a != nil && len(a.keys) > 0
}

// ValidateAPIKey validates an API key and returns the matching key entry
func (a *Authenticator) ValidateAPIKey(apiKey string) (*Key, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("invalid API key")
	}
	keyHash := []byte(HashAPIKey(apiKey))

	// Constant-time comparison against every key; no early exit.
	var match *Key
	for i := range a.keys {
		if subtle.ConstantTimeCompare(keyHash, []byte(a.keys[i].KeyHash)) == 1 && match == nil {
			match = &a.keys[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("invalid API key")
	}
	return match, nil
}

// ExtractAPIKey extracts the API key from the Authorization header
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return strings.TrimSpace(parts[1]), nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

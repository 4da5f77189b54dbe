package auth

import (
	"net/http"
	"strings"
	"testing"

	"github.com/tjfontaine/deploywatch/internal/config"
)

func TestHashAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		expected string
	}{
		{
			name:     "simple key",
			apiKey:   "test-key-123",
			expected: "625faa3fbbc3d2bd9d6ee7678d04cc5339cb33dc68d9b58451853d60046e226a",
		},
		{
			name:     "empty key",
			apiKey:   "",
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashAPIKey(tt.apiKey)
			if hash != tt.expected {
				t.Errorf("HashAPIKey() = %v, want %v", hash, tt.expected)
			}
		})
	}
}

func TestAuthenticator_ValidateAPIKey(t *testing.T) {
	auth := NewAuthenticator([]config.APIKeyConfig{
		{KeyHash: HashAPIKey("valid-key-1"), Description: "ops"},
		{KeyHash: strings.ToUpper(HashAPIKey("valid-key-2")), Description: "dashboard"},
	})

	tests := []struct {
		name      string
		apiKey    string
		wantDesc  string
		wantError bool
	}{
		{
			name:     "valid key 1",
			apiKey:   "valid-key-1",
			wantDesc: "ops",
		},
		{
			name:     "valid key with uppercase hash",
			apiKey:   "valid-key-2",
			wantDesc: "dashboard",
		},
		{
			name:      "invalid key",
			apiKey:    "invalid-key",
			wantError: true,
		},
		{
			name:      "empty key",
			apiKey:    "",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := auth.ValidateAPIKey(tt.apiKey)

			if tt.wantError {
				if err == nil {
					t.Error("ValidateAPIKey() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("ValidateAPIKey() unexpected error: %v", err)
				return
			}

			if key.Description != tt.wantDesc {
				t.Errorf("ValidateAPIKey() description = %v, want %v", key.Description, tt.wantDesc)
			}
		})
	}
}

func TestAuthenticator_Enabled(t *testing.T) {
	if NewAuthenticator(nil).Enabled() {
		t.Error("Enabled() = true with no keys")
	}
	if !NewAuthenticator([]config.APIKeyConfig{{KeyHash: "abc"}}).Enabled() {
		t.Error("Enabled() = false with a key")
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		want       string
		wantError  bool
	}{
		{
			name:       "valid bearer token",
			authHeader: "Bearer test-key-123",
			want:       "test-key-123",
			wantError:  false,
		},
		{
			name:       "bearer lowercase",
			authHeader: "bearer test-key-456",
			want:       "test-key-456",
			wantError:  false,
		},
		{
			name:       "missing bearer prefix",
			authHeader: "test-key-789",
			wantError:  true,
		},
		{
			name:       "empty header",
			authHeader: "",
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create a real http.Request
			req, err := http.NewRequest("GET", "http://example.com", nil)
			if err != nil {
				t.Fatalf("Failed to create request: %v", err)
			}

			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			got, err := ExtractAPIKey(req)

			if tt.wantError {
				if err == nil {
					t.Error("ExtractAPIKey() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("ExtractAPIKey() unexpected error: %v", err)
				return
			}

			if got != tt.want {
				t.Errorf("ExtractAPIKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

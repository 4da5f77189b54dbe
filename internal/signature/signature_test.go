package signature

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

func mustSecret(t *testing.T, s string) Secret {
	t.Helper()
	secret, err := ParseSecret(s)
	if err != nil {
		t.Fatalf("ParseSecret() error = %v", err)
	}
	return secret
}

func TestVerify_KnownVector(t *testing.T) {
	secret := mustSecret(t, testSecret)
	body := []byte(`{"test": 2432232314}`)

	err := Verify(body, "msg_p5jXN8AQM9LWM0D4loKWxJek", "1614265330",
		"v1,g0hM9SsE+OTPJTGt/tmIKtSyZlE3uFJELVlNIOLJ1OE=", secret)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	secret := mustSecret(t, testSecret)

	tests := []struct {
		name      string
		id        string
		timestamp string
		body      []byte
	}{
		{name: "json body", id: "msg_1", timestamp: "1700000000", body: []byte(`{"type":"email.received","data":{}}`)},
		{name: "empty body", id: "msg_2", timestamp: "1700000001", body: []byte{}},
		{name: "body with periods", id: "msg.3", timestamp: "1700000002", body: []byte("a.b.c")},
		{name: "binary body", id: "msg_4", timestamp: "1", body: []byte{0x00, 0xff, 0x2e, 0x10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := Sign(tt.id, tt.timestamp, tt.body, secret)
			if err := Verify(tt.body, tt.id, tt.timestamp, header, secret); err != nil {
				t.Errorf("Verify() error = %v", err)
			}
		})
	}
}

func TestVerify_SingleByteMutationFails(t *testing.T) {
	secret := mustSecret(t, testSecret)
	id := "msg_2Lh9KRb0pzN4LePd3XiA4ivPbjM"
	timestamp := "1700000000"
	body := []byte(`{"type":"email.received","data":{"email_id":"abc"}}`)
	header := Sign(id, timestamp, body, secret)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		if err := Verify(mutated, id, timestamp, header, secret); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("body mutation at %d: Verify() error = %v, want ErrNoMatch", i, err)
		}
	}

	for i := range id {
		mutated := []byte(id)
		mutated[i] ^= 0x01
		if err := Verify(body, string(mutated), timestamp, header, secret); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("id mutation at %d: Verify() error = %v, want ErrNoMatch", i, err)
		}
	}

	for i := range timestamp {
		mutated := []byte(timestamp)
		mutated[i] ^= 0x01
		if err := Verify(body, id, string(mutated), header, secret); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("timestamp mutation at %d: Verify() error = %v, want ErrNoMatch", i, err)
		}
	}
}

func TestVerify_MultipleCandidates(t *testing.T) {
	secret := mustSecret(t, testSecret)
	other := mustSecret(t, "whsec_"+"c2Vjb25kLXNlY3JldC1rZXktZm9yLXJvdGF0aW9u")
	body := []byte(`{"type":"email.received"}`)
	good := Sign("msg_1", "1700000000", body, secret)
	stale := Sign("msg_1", "1700000000", body, other)

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{name: "only match", header: good},
		{name: "match last", header: stale + " " + good},
		{name: "match first", header: good + " " + stale},
		{name: "match among garbage", header: "v1 nonsense v1, " + good + " ,,,"},
		{name: "extra whitespace", header: "  " + stale + "   " + good + "  "},
		{name: "all fail", header: stale + " " + stale, wantErr: true},
		{name: "empty header", header: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(body, "msg_1", "1700000000", tt.header, secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_MalformedTokensDoNotPanic(t *testing.T) {
	secret := mustSecret(t, testSecret)
	body := []byte(`{}`)
	sig := Sign("msg_1", "1", body, secret)
	_, raw, _ := strings.Cut(sig, ",")

	headers := []string{
		",",
		",,,,",
		"v1",
		"v1,",
		",v1",
		"v1,not-base64!!",
		"v1,a,b,c",
		raw,                  // signature without version
		"v1," + raw + ",tail", // extra comma turns the signature into something else
		"\t\n",
	}

	for _, h := range headers {
		if err := Verify(body, "msg_1", "1", h, secret); !errors.Is(err, ErrNoMatch) {
			t.Errorf("Verify(%q) error = %v, want ErrNoMatch", h, err)
		}
	}
}

func TestVerify_VersionIsIgnored(t *testing.T) {
	secret := mustSecret(t, testSecret)
	body := []byte(`{}`)
	sig := Sign("msg_1", "1", body, secret)
	_, raw, _ := strings.Cut(sig, ",")

	if err := Verify(body, "msg_1", "1", "v2,"+raw, secret); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestVerify_NoSecret(t *testing.T) {
	if err := Verify([]byte("{}"), "id", "1", "v1,abc", nil); !errors.Is(err, ErrNoSecret) {
		t.Errorf("Verify() error = %v, want ErrNoSecret", err)
	}
}

func TestCandidates(t *testing.T) {
	got := Candidates("v1,abc v1a,def=  broken v2,ghi,jkl")
	want := []string{"abc", "def=", "ghi,jkl"}
	if len(got) != len(want) {
		t.Fatalf("Candidates() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Candidates()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseSecret(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr bool
	}{
		{name: "prefixed", input: testSecret, wantLen: 24},
		{name: "unprefixed", input: "MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw", wantLen: 24},
		{name: "surrounding space", input: "  " + testSecret + "\n", wantLen: 24},
		{name: "empty", input: "", wantErr: true},
		{name: "prefix only", input: "whsec_", wantErr: true},
		{name: "not base64", input: "whsec_***", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSecret(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSecret() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(got) != tt.wantLen {
				t.Errorf("ParseSecret() len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestSecret_String(t *testing.T) {
	secret := mustSecret(t, testSecret)
	if got := secret.String(); got != testSecret {
		t.Errorf("String() = %q, want %q", got, testSecret)
	}
}

func TestCheckTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name      string
		timestamp string
		tolerance time.Duration
		wantErr   error
	}{
		{name: "exact", timestamp: "1700000000", tolerance: 5 * time.Minute},
		{name: "slightly old", timestamp: "1699999800", tolerance: 5 * time.Minute},
		{name: "slightly ahead", timestamp: "1700000200", tolerance: 5 * time.Minute},
		{name: "too old", timestamp: "1699999000", tolerance: 5 * time.Minute, wantErr: ErrTimestampOutOfRange},
		{name: "too new", timestamp: "1700001000", tolerance: 5 * time.Minute, wantErr: ErrTimestampOutOfRange},
		{name: "not a number", timestamp: "yesterday", tolerance: 5 * time.Minute, wantErr: ErrInvalidTimestamp},
		{name: "disabled", timestamp: "yesterday", tolerance: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTimestamp(tt.timestamp, now, tt.tolerance)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("CheckTimestamp() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckTimestamp() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

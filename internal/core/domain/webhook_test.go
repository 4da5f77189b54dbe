package domain

import (
	"net/http"
	"testing"
)

func TestDeliveryHeadersFrom(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    DeliveryHeaders
	}{
		{
			name:    "svix names",
			headers: map[string]string{"svix-id": "a", "svix-timestamp": "1", "svix-signature": "v1,x"},
			want:    DeliveryHeaders{ID: "a", Timestamp: "1", Signature: "v1,x"},
		},
		{
			name:    "webhook aliases",
			headers: map[string]string{"webhook-id": "b", "webhook-timestamp": "2", "webhook-signature": "v1,y"},
			want:    DeliveryHeaders{ID: "b", Timestamp: "2", Signature: "v1,y"},
		},
		{
			name:    "canonical wins over alias",
			headers: map[string]string{"svix-id": "c", "webhook-id": "other"},
			want:    DeliveryHeaders{ID: "c"},
		},
		{
			name:    "blank values are absent",
			headers: map[string]string{"svix-id": "  ", "svix-timestamp": "3"},
			want:    DeliveryHeaders{Timestamp: "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			if got := DeliveryHeadersFrom(h); got != tt.want {
				t.Errorf("DeliveryHeadersFrom() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDeliveryHeaders_Complete(t *testing.T) {
	full := DeliveryHeaders{ID: "a", Timestamp: "1", Signature: "v1,x"}
	if !full.Complete() {
		t.Error("Complete() = false for full headers")
	}
	for _, partial := range []DeliveryHeaders{
		{Timestamp: "1", Signature: "v1,x"},
		{ID: "a", Signature: "v1,x"},
		{ID: "a", Timestamp: "1"},
	} {
		if partial.Complete() {
			t.Errorf("Complete() = true for %+v", partial)
		}
	}
}

func TestDeliveryHeaders_Apply(t *testing.T) {
	h := http.Header{}
	DeliveryHeaders{ID: "a", Timestamp: "1", Signature: "v1,x"}.Apply(h)
	if h.Get("svix-id") != "a" || h.Get("svix-timestamp") != "1" || h.Get("svix-signature") != "v1,x" {
		t.Errorf("Apply() headers = %v", h)
	}
}

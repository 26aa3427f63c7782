package capability

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected Kind
	}{
		{http.StatusInternalServerError, KindHTTP},
		{http.StatusBadRequest, KindHTTP},
		{http.StatusUnauthorized, KindHTTP},
		{http.StatusTooManyRequests, KindHTTP},
		{http.StatusServiceUnavailable, KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := FromStatus("completion", tt.status, "boom")
			if err.Kind != tt.expected {
				t.Errorf("FromStatus(%d).Kind = %s, want %s", tt.status, err.Kind, tt.expected)
			}
			if err.Status != tt.status {
				t.Errorf("Status = %d, want %d", err.Status, tt.status)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(NewMalformed("ocr", errors.New("no text field"))); got != KindMalformed {
		t.Errorf("KindOf = %s, want %s", got, KindMalformed)
	}

	// Wrapped taxonomy errors still classify.
	wrapped := fmt.Errorf("handling voice: %w", NewUnavailable("transcription", errors.New("loading")))
	if got := KindOf(wrapped); got != KindUnavailable {
		t.Errorf("KindOf(wrapped) = %s, want %s", got, KindUnavailable)
	}

	// Plain errors fall into the network bucket.
	if got := KindOf(errors.New("dial tcp: connection refused")); got != KindNetwork {
		t.Errorf("KindOf(plain) = %s, want %s", got, KindNetwork)
	}
}

func TestUserMessagesAreDistinct(t *testing.T) {
	kinds := []Kind{KindNetwork, KindHTTP, KindMalformed, KindUnavailable, KindUnknownSelector}

	seen := make(map[string]Kind, len(kinds))
	for _, k := range kinds {
		msg := userMessages[k]
		if msg == "" {
			t.Fatalf("kind %s has no user message", k)
		}
		if prev, dup := seen[msg]; dup {
			t.Errorf("kinds %s and %s share the message %q", prev, k, msg)
		}
		seen[msg] = k
	}
}

func TestUserMessageNeverEmpty(t *testing.T) {
	if msg := UserMessage(errors.New("anything")); msg == "" {
		t.Error("UserMessage returned empty string for plain error")
	}
	if msg := UserMessage(NewUnknownSelector("synthesis", "ghost")); msg != userMessages[KindUnknownSelector] {
		t.Errorf("UserMessage = %q, want selector message", msg)
	}
}

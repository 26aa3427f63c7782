package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/capability"
)

func TestTranscribeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("path = %q, want /transcribe", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("request is not multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("no file part: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "voice.ogg" {
			t.Errorf("filename = %q, want voice.ogg", hdr.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "text": " hello world ", "language": "ru"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	text, err := c.Transcribe(context.Background(), []byte("OggS..."), "")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want trimmed %q", text, "hello world")
	}
}

func TestTranscribeModelLoading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail": "model not loaded yet"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	_, err := c.Transcribe(context.Background(), []byte("x"), "voice.ogg")
	if capability.KindOf(err) != capability.KindUnavailable {
		t.Errorf("kind = %s, want service_unavailable", capability.KindOf(err))
	}
}

func TestTranscribeFailureShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"success_false", `{"success": false, "text": "", "error": "decode failed"}`},
		{"empty_text", `{"success": true, "text": "   "}`},
		{"not_json", "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.URL, time.Second, nil)
			_, err := c.Transcribe(context.Background(), []byte("x"), "voice.ogg")
			if capability.KindOf(err) != capability.KindMalformed {
				t.Errorf("kind = %s, want malformed_response", capability.KindOf(err))
			}
		})
	}
}

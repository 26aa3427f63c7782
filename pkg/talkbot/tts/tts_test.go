package tts

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestProvider(tokenURL, ttsURL string) *YandexProvider {
	p := NewYandexProvider(Config{
		OAuthToken: "oauth-secret",
		FolderID:   "folder-1",
	}, slog.Default())
	p.tokenEndpoint = tokenURL
	p.ttsEndpoint = ttsURL
	return p
}

func TestSynthesize(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"iamToken":"iam-123","expiresAt":"` + time.Now().Add(12*time.Hour).Format(time.RFC3339) + `"}`))
	}))
	defer tokenSrv.Close()

	var gotAuth, gotVoice, gotEmotion, gotFormat string
	ttsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotAuth = r.Header.Get("Authorization")
		gotVoice = r.FormValue("voice")
		gotEmotion = r.FormValue("emotion")
		gotFormat = r.FormValue("format")
		w.Write([]byte("OggS-audio-bytes"))
	}))
	defer ttsSrv.Close()

	p := newTestProvider(tokenSrv.URL, ttsSrv.URL)
	audio, mime, err := p.Synthesize(context.Background(), "привет", VoiceParams{Voice: "jane", Emotion: "good"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "OggS-audio-bytes" {
		t.Errorf("unexpected audio payload: %q", audio)
	}
	if mime != "audio/ogg" {
		t.Errorf("mime = %q, want audio/ogg", mime)
	}
	if gotAuth != "Bearer iam-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotVoice != "jane" || gotEmotion != "good" {
		t.Errorf("voice/emotion = %q/%q", gotVoice, gotEmotion)
	}
	if gotFormat != "oggopus" {
		t.Errorf("format = %q, want oggopus", gotFormat)
	}
}

func TestIAMTokenCached(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Write([]byte(`{"iamToken":"iam-123","expiresAt":"` + time.Now().Add(12*time.Hour).Format(time.RFC3339) + `"}`))
	}))
	defer tokenSrv.Close()

	ttsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio"))
	}))
	defer ttsSrv.Close()

	p := newTestProvider(tokenSrv.URL, ttsSrv.URL)
	for i := 0; i < 3; i++ {
		if _, _, err := p.Synthesize(context.Background(), "ok", VoiceParams{}); err != nil {
			t.Fatalf("Synthesize #%d: %v", i, err)
		}
	}
	if n := tokenCalls.Load(); n != 1 {
		t.Errorf("token endpoint called %d times, want 1", n)
	}
}

func TestIAMTokenRefreshedNearExpiry(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		// Already inside the refresh margin.
		w.Write([]byte(`{"iamToken":"iam-123","expiresAt":"` + time.Now().Add(10*time.Minute).Format(time.RFC3339) + `"}`))
	}))
	defer tokenSrv.Close()

	ttsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio"))
	}))
	defer ttsSrv.Close()

	p := newTestProvider(tokenSrv.URL, ttsSrv.URL)
	for i := 0; i < 2; i++ {
		if _, _, err := p.Synthesize(context.Background(), "ok", VoiceParams{}); err != nil {
			t.Fatalf("Synthesize #%d: %v", i, err)
		}
	}
	if n := tokenCalls.Load(); n != 2 {
		t.Errorf("token endpoint called %d times, want 2", n)
	}
}

func TestSynthesizeRefusesOverlongText(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Write([]byte(`{"iamToken":"iam-123","expiresAt":"` + time.Now().Add(12*time.Hour).Format(time.RFC3339) + `"}`))
	}))
	defer tokenSrv.Close()

	p := newTestProvider(tokenSrv.URL, "http://unused")
	long := strings.Repeat("я", maxSynthesisChars+1)
	if _, _, err := p.Synthesize(context.Background(), long, VoiceParams{}); err == nil {
		t.Fatal("expected error for text over the synthesis limit")
	}
	// No backend call happens for refused input.
	if n := tokenCalls.Load(); n != 0 {
		t.Errorf("token endpoint called %d times, want 0", n)
	}
}

func TestSynthesizeTokenExchangeFails(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid oauth token"}`, http.StatusUnauthorized)
	}))
	defer tokenSrv.Close()

	p := newTestProvider(tokenSrv.URL, "http://unused")
	if _, _, err := p.Synthesize(context.Background(), "ok", VoiceParams{}); err == nil {
		t.Fatal("expected error on token exchange failure")
	}
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"iamToken":"iam-123","expiresAt":"` + time.Now().Add(12*time.Hour).Format(time.RFC3339) + `"}`))
	}))
	defer tokenSrv.Close()

	ttsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ttsSrv.Close()

	p := newTestProvider(tokenSrv.URL, ttsSrv.URL)
	if _, _, err := p.Synthesize(context.Background(), "ok", VoiceParams{}); err == nil {
		t.Fatal("expected error on empty audio body")
	}
}

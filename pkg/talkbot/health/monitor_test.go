package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckAll(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q, want /health", r.URL.Path)
		}
		w.Write([]byte(`{"status":"healthy","model_loaded":true}`))
	}))
	defer healthy.Close()

	loading := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy","models_loaded":false}`))
	}))
	defer loading.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down.Close()

	m := New([]Target{
		{Name: "speech", URL: healthy.URL},
		{Name: "image", URL: loading.URL},
		{Name: "ocr", URL: down.URL},
		{Name: "disabled", URL: ""},
	}, "", nil)

	m.CheckAll(context.Background())

	statuses := m.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("got %d statuses, want 3 (disabled target skipped)", len(statuses))
	}

	byName := make(map[string]Status)
	for _, st := range statuses {
		byName[st.Name] = st
	}
	if !byName["speech"].Healthy {
		t.Errorf("speech should be healthy: %+v", byName["speech"])
	}
	if byName["image"].Healthy || byName["image"].Detail != "starting up" {
		t.Errorf("image should be starting up: %+v", byName["image"])
	}
	if byName["ocr"].Healthy || byName["ocr"].Detail != "unreachable" {
		t.Errorf("ocr should be unreachable: %+v", byName["ocr"])
	}
}

func TestStatusesSorted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	m := New([]Target{
		{Name: "zeta", URL: srv.URL},
		{Name: "alpha", URL: srv.URL},
	}, "", nil)
	m.CheckAll(context.Background())

	statuses := m.Statuses()
	if len(statuses) != 2 || statuses[0].Name != "alpha" || statuses[1].Name != "zeta" {
		t.Errorf("statuses not sorted by name: %+v", statuses)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	m := New(nil, "not a cron expr", nil)
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

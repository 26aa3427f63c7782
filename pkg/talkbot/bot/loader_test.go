package bot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseConfigOverlaysDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
api:
  base_url: http://localhost:8080/v1
session:
  history_limit: 42
channels:
  telegram:
    enabled: true
    token: tok
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("base_url = %q", cfg.API.BaseURL)
	}
	if cfg.Session.HistoryLimit != 42 {
		t.Errorf("history_limit = %d, want 42", cfg.Session.HistoryLimit)
	}
	// Untouched fields keep their defaults.
	if cfg.API.TimeoutSeconds != 240 {
		t.Errorf("timeout = %d, want default 240", cfg.API.TimeoutSeconds)
	}
	if cfg.Session.DefaultModel != "gpt-4.1-mini" {
		t.Errorf("default_model = %q, want default", cfg.Session.DefaultModel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TB_TEST_TOKEN", "secret-123")

	tests := []struct {
		name  string
		in    string
		want  string
		fails bool
	}{
		{"set variable", "token: ${TB_TEST_TOKEN}", "token: secret-123", false},
		{"unset plain", "token: ${TB_TEST_MISSING}", "token: ", false},
		{"unset with default", "url: ${TB_TEST_MISSING:-http://localhost}", "url: http://localhost", false},
		{"set ignores default", "t: ${TB_TEST_TOKEN:-fallback}", "t: secret-123", false},
		{"unset required", "token: ${TB_TEST_MISSING:?token is required}", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.in)
			if tt.fails {
				if err == nil {
					t.Fatal("expected error for required unset variable")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadConfigExpandsAndValidates(t *testing.T) {
	t.Setenv("TB_TEST_API_KEY", "sk-test")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
api:
  base_url: http://localhost:8080/v1
  api_key: ${TB_TEST_API_KEY}
channels:
  discord:
    enabled: true
    token: tok
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.APIKey != "sk-test" {
		t.Errorf("api_key = %q, want expanded env value", cfg.API.APIKey)
	}
}

func TestValidateRejectsNoChannels(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when no channel is enabled")
	}
}

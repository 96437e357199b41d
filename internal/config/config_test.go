package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("SCOUT_VERTESIA_API_KEY", "")
	cfg, err := Parse([]byte(`
vertesia:
  api_key: sk-test
  environment_id: env-1
  base_url: https://example.test/api/v1/
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Vertesia.BaseURL != "https://example.test/api/v1" {
		t.Errorf("trailing slash not trimmed: %q", cfg.Vertesia.BaseURL)
	}
	if cfg.Jobs.PollInterval != 15*time.Second {
		t.Errorf("poll interval default = %s", cfg.Jobs.PollInterval)
	}
	if cfg.Jobs.Ceiling != 30*time.Minute {
		t.Errorf("ceiling default = %s", cfg.Jobs.Ceiling)
	}
	if cfg.Jobs.ActiveKey != "deepresearch_active_jobs" || cfg.Jobs.HistoryKey != "research_history" {
		t.Errorf("unexpected store keys: %q %q", cfg.Jobs.ActiveKey, cfg.Jobs.HistoryKey)
	}
	if cfg.Chat.HistoryWindow != 10 || cfg.Chat.MinAnswerChars != 10 || cfg.Chat.MaxSaved != 50 {
		t.Errorf("unexpected chat defaults: %+v", cfg.Chat)
	}
	if cfg.Store.Driver != "badger" {
		t.Errorf("store driver default = %q", cfg.Store.Driver)
	}
	if cfg.Pulse.DailyCron != "30 9 * * *" || cfg.Pulse.Gate != 12*time.Hour {
		t.Errorf("unexpected pulse defaults: %+v", cfg.Pulse)
	}
}

func TestParse_Validation(t *testing.T) {
	t.Setenv("SCOUT_VERTESIA_API_KEY", "")
	t.Setenv("SCOUT_ENCRYPTION_KEY", "")
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"missing key", "vertesia: {environment_id: e}", "api_key"},
		{"missing env", "vertesia: {api_key: k}", "environment_id"},
		{"redis without url", "vertesia: {api_key: k, environment_id: e}\nstore: {driver: redis}", "redis.url"},
		{"postgres without url", "vertesia: {api_key: k, environment_id: e}\nstore: {driver: postgres}", "database.url"},
		{"unknown driver", "vertesia: {api_key: k, environment_id: e}\nstore: {driver: etcd}", "not supported"},
		{"telegram without chat", "vertesia: {api_key: k, environment_id: e}\ntelegram: {token: t}", "chat_id"},
		{"short encryption key", "vertesia: {api_key: k, environment_id: e}\nstore: {encryption_key: abc}", "encryption_key"},
		{"passive check beyond ceiling", "vertesia: {api_key: k, environment_id: e}\njobs: {ceiling: 1m, passive_interval: 2m}", "passive_interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("vertesia: {api_key: from-file, environment_id: e}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCOUT_VERTESIA_API_KEY", "from-env")

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Vertesia.APIKey != "from-env" {
		t.Errorf("env override not applied: %q", cfg.Vertesia.APIKey)
	}
	if !cfg.Runtime.Dev {
		t.Errorf("dev flag not propagated")
	}
}

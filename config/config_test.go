package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "negative concurrency",
			mutate: func(cfg *Config) {
				cfg.Concurrency = -1
			},
			wantErr: "concurrency",
		},
		{
			name: "zero pages",
			mutate: func(cfg *Config) {
				cfg.Pages = 0
			},
			wantErr: "pages",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "empty page param",
			mutate: func(cfg *Config) {
				cfg.PageParam = ""
			},
			wantErr: "page param",
		},
		{
			name: "missing card selector",
			mutate: func(cfg *Config) {
				cfg.Selectors.Card = ""
			},
			wantErr: "card selector",
		},
		{
			name: "negative price cache",
			mutate: func(cfg *Config) {
				cfg.PriceCacheSize = -5
			},
			wantErr: "price cache",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.Concurrency != 5 || cfg.Timeout != 10*time.Second {
		t.Fatalf("defaults = concurrency %d timeout %s, want 5 and 10s", cfg.Concurrency, cfg.Timeout)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LISTINGS_PAGES", "3")
	t.Setenv("LISTINGS_CONCURRENCY", "2")
	t.Setenv("LISTINGS_OUTPUT", "out/raw.csv")
	t.Setenv("LISTINGS_BASE_URL", " http://example.test/phones ")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Pages != 3 || cfg.Concurrency != 2 {
		t.Fatalf("pages=%d concurrency=%d, want 3 and 2", cfg.Pages, cfg.Concurrency)
	}
	if cfg.OutputFile != "out/raw.csv" {
		t.Fatalf("output=%q", cfg.OutputFile)
	}
	if cfg.BaseURL != "http://example.test/phones" {
		t.Fatalf("base url=%q", cfg.BaseURL)
	}
}

func TestApplyEnvInvalidInt(t *testing.T) {
	t.Setenv("LISTINGS_PAGES", "many")

	cfg := DefaultConfig()
	err := cfg.ApplyEnv()
	if err == nil || !strings.Contains(err.Error(), "LISTINGS_PAGES") {
		t.Fatalf("expected LISTINGS_PAGES error, got %v", err)
	}
}

func TestLoadFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `base_url: http://example.test/phones
pages: 4
timeout: 2s
selectors:
  card: article.card
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "http://example.test/phones" || cfg.Pages != 4 {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if cfg.Timeout != 2*time.Second {
		t.Fatalf("timeout=%s, want 2s", cfg.Timeout)
	}
	if cfg.Selectors.Card != "article.card" {
		t.Fatalf("card selector=%q", cfg.Selectors.Card)
	}
	if cfg.Concurrency != 5 || cfg.PageParam != "pi" {
		t.Fatalf("defaults lost: concurrency=%d page_param=%q", cfg.Concurrency, cfg.PageParam)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoadExplicitMissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("pages: 4\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LISTINGS_PAGES", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pages != 9 {
		t.Fatalf("pages=%d, want 9", cfg.Pages)
	}
}

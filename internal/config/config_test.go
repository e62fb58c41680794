package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"BAOSTOCK_ADDR", "OUTPUT_DIR", "DB_PATH", "WORKERS", "HTTP_TIMEOUT_SECONDS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.BaostockAddr != "public-api.baostock.com:10030" {
		t.Errorf("unexpected baostock addr %q", cfg.BaostockAddr)
	}
	if cfg.OutputDir != "." {
		t.Errorf("expected output dir '.', got %q", cfg.OutputDir)
	}
	if cfg.DBPath != "" {
		t.Errorf("expected run log disabled by default, got %q", cfg.DBPath)
	}
	if cfg.Workers != 5 {
		t.Errorf("expected 5 workers, got %d", cfg.Workers)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %s", cfg.HTTPTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKERS", "3")
	t.Setenv("DB_PATH", "runs.db")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "x")

	cfg := Load()
	if cfg.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Workers)
	}
	if cfg.DBPath != "runs.db" {
		t.Errorf("expected runs.db, got %q", cfg.DBPath)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("invalid int should fall back, got %s", cfg.HTTPTimeout)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Swap.Interval != 5*time.Minute {
		t.Fatalf("unexpected default interval: %v", settings.Swap.Interval)
	}
	if settings.Swap.MinSOLReserve != 0.02 {
		t.Fatalf("unexpected default reserve: %v", settings.Swap.MinSOLReserve)
	}
	if settings.Swap.UseDLMMFallback {
		t.Fatal("direct pool fallback must default off")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "swap:\n  max_buy: \"25\"\n  interval: 60s\n")
	t.Setenv("GIDDY_MAX_BUY", "40")

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Swap.MaxBuy != "40" {
		t.Fatalf("expected env to win, got %s", settings.Swap.MaxBuy)
	}
	if settings.Swap.Interval != time.Minute {
		t.Fatalf("expected file interval, got %v", settings.Swap.Interval)
	}
}

func TestLoadRejectsMaxBuyBelowMinSwap(t *testing.T) {
	path := writeConfig(t, "swap:\n  min_swap_amount: \"5\"\n  max_buy: \"2\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRejectsBadDirection(t *testing.T) {
	path := writeConfig(t, "swap:\n  initial_direction: sideways\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadTelegramRequiresCredentials(t *testing.T) {
	path := writeConfig(t, "telegram:\n  enabled: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing bot token")
	}
}

func TestLoadAuditDirDerivesPaths(t *testing.T) {
	path := writeConfig(t, "audit:\n  dir: /tmp/giddy-audit\n")
	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Audit.DBPath != "/tmp/giddy-audit/outcomes.db" {
		t.Fatalf("unexpected db path: %s", settings.Audit.DBPath)
	}
	if settings.Audit.LockPath != "/tmp/giddy-audit/outcomes.lock" {
		t.Fatalf("unexpected lock path: %s", settings.Audit.LockPath)
	}
}

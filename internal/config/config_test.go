package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chessmate-desktop/enginecore/internal/domain"
)

func writeFakeBinary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stockfish")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRequiresEngineSource(t *testing.T) {
	t.Setenv("ENGINE_PATH", "")
	t.Setenv("ENGINES_FILE", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error without ENGINE_PATH or ENGINES_FILE")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENGINE_PATH", "/usr/bin/stockfish")
	t.Setenv("ENGINES_FILE", "")
	t.Setenv("PROFILE_CACHE_TTL", "")
	t.Setenv("DEFAULT_MOVE_TIME_MS", "")
	t.Setenv("HISTORY_LIMIT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EnginePath != "/usr/bin/stockfish" {
		t.Fatalf("engine path = %q", cfg.EnginePath)
	}
	if cfg.DefaultMoveTime() != 2*time.Second {
		t.Fatalf("default move time = %v", cfg.DefaultMoveTime())
	}
	if cfg.ProfileCacheTTL() != 24*time.Hour {
		t.Fatalf("profile cache ttl = %v", cfg.ProfileCacheTTL())
	}
	if cfg.HistoryLimit != 50 {
		t.Fatalf("history limit = %d", cfg.HistoryLimit)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ENGINE_PATH", "/usr/bin/stockfish")
	t.Setenv("DEFAULT_MOVE_TIME_MS", "750")
	t.Setenv("PROFILE_CACHE_TTL", "60")
	t.Setenv("HISTORY_LIMIT", "bogus")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultMoveTime() != 750*time.Millisecond {
		t.Fatalf("move time = %v", cfg.DefaultMoveTime())
	}
	if cfg.ProfileCacheTTL() != time.Minute {
		t.Fatalf("ttl = %v", cfg.ProfileCacheTTL())
	}
	// Unparseable values keep the default.
	if cfg.HistoryLimit != 50 {
		t.Fatalf("history limit = %d", cfg.HistoryLimit)
	}
}

func TestLoadEngines(t *testing.T) {
	binary := writeFakeBinary(t)
	path := filepath.Join(t.TempDir(), "engines.yaml")
	content := `
engines:
  primary:
    path: ` + binary + `
    threads: 2
    hash_mb: 256
    skill_level: 15
    multipv: 3
    move_time_ms: 1500
  secondary:
    limit_strength: true
    elo: 1500
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	engines, err := LoadEngines(path, binary)
	if err != nil {
		t.Fatal(err)
	}
	if len(engines) != 2 {
		t.Fatalf("engine count = %d, want 2", len(engines))
	}

	primary := engines[domain.RolePrimary]
	if primary.Threads != 2 || primary.HashMB != 256 || primary.SkillLevel != 15 || primary.MultiPV != 3 {
		t.Fatalf("primary config %+v", primary)
	}
	if primary.MoveTime != 1500*time.Millisecond {
		t.Fatalf("primary move time = %v", primary.MoveTime)
	}

	secondary := engines[domain.RoleSecondary]
	if secondary.BinaryPath != binary {
		t.Fatalf("secondary must fall back to the default binary, got %q", secondary.BinaryPath)
	}
	if !secondary.LimitStrength || secondary.Elo != 1500 {
		t.Fatalf("secondary strength limit %+v", secondary)
	}
}

func TestLoadEnginesRejectsUnknownRole(t *testing.T) {
	binary := writeFakeBinary(t)
	path := filepath.Join(t.TempDir(), "engines.yaml")
	content := "engines:\n  kibitzer:\n    path: " + binary + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadEngines(path, binary); err == nil {
		t.Fatal("expected an error for an unknown role name")
	}
}

func TestLoadEnginesRejectsInvalidEntry(t *testing.T) {
	binary := writeFakeBinary(t)
	path := filepath.Join(t.TempDir(), "engines.yaml")
	content := "engines:\n  primary:\n    path: " + binary + "\n    skill_level: 42\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadEngines(path, binary)
	if !domain.IsKind(err, domain.KindInvalidConfig) {
		t.Fatalf("error kind = %q, want invalid_config", domain.KindOf(err))
	}
}

func TestLoadEnginesMissingBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engines.yaml")
	content := "engines:\n  primary:\n    path: /nonexistent/engine\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadEngines(path, "/nonexistent/engine")
	if !domain.IsKind(err, domain.KindInvalidConfig) {
		t.Fatalf("error kind = %q, want invalid_config", domain.KindOf(err))
	}
}

func TestLoadEnginesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engines.yaml")
	if err := os.WriteFile(path, []byte("engines: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadEngines(path, ""); err == nil {
		t.Fatal("expected an error for an empty engines file")
	}
}

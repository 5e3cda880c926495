package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chessmate-desktop/enginecore/internal/domain"
	"github.com/chessmate-desktop/enginecore/internal/uci"
)

type AppConfig struct {
	EnginePath  string
	EnginesFile string

	RedisURL    string
	DatabaseURL string

	ProfileCacheTTLSec int
	DefaultMoveTimeMs  int
	HistoryLimit       int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ProfileCacheTTLSec: 86400,
		DefaultMoveTimeMs:  2000,
		HistoryLimit:       50,
	}

	cfg.EnginePath = strings.TrimSpace(os.Getenv("ENGINE_PATH"))
	cfg.EnginesFile = strings.TrimSpace(os.Getenv("ENGINES_FILE"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("PROFILE_CACHE_TTL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ProfileCacheTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_MOVE_TIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultMoveTimeMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}

	if cfg.EnginePath == "" && cfg.EnginesFile == "" {
		return nil, errors.New("ENGINE_PATH or ENGINES_FILE is required")
	}

	return cfg, nil
}

func (c *AppConfig) DefaultMoveTime() time.Duration {
	return time.Duration(c.DefaultMoveTimeMs) * time.Millisecond
}

func (c *AppConfig) ProfileCacheTTL() time.Duration {
	return time.Duration(c.ProfileCacheTTLSec) * time.Second
}

// EngineEntry mirrors one role's engine configuration on disk.
type EngineEntry struct {
	Path           string `yaml:"path"`
	Threads        int    `yaml:"threads"`
	HashMB         int    `yaml:"hash_mb"`
	SkillLevel     int    `yaml:"skill_level"`
	MultiPV        int    `yaml:"multipv"`
	LimitStrength  bool   `yaml:"limit_strength"`
	Elo            int    `yaml:"elo"`
	MoveTimeMs     int    `yaml:"move_time_ms"`
	MalformedLimit int    `yaml:"malformed_limit"`
}

type enginesFile struct {
	Engines map[string]EngineEntry `yaml:"engines"`
}

func (e EngineEntry) toConfig(fallbackPath string) uci.EngineConfig {
	path := strings.TrimSpace(e.Path)
	if path == "" {
		path = fallbackPath
	}
	return uci.EngineConfig{
		BinaryPath:     path,
		Threads:        e.Threads,
		HashMB:         e.HashMB,
		SkillLevel:     e.SkillLevel,
		MultiPV:        e.MultiPV,
		LimitStrength:  e.LimitStrength,
		Elo:            e.Elo,
		MoveTime:       time.Duration(e.MoveTimeMs) * time.Millisecond,
		MalformedLimit: e.MalformedLimit,
	}
}

// LoadEngines reads the persisted role→engine mapping. Every entry is
// fully validated here so a broken file fails at load, not mid-game.
func LoadEngines(path, fallbackBinary string) (map[domain.Role]uci.EngineConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engines file: %w", err)
	}
	var file enginesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse engines file: %w", err)
	}
	if len(file.Engines) == 0 {
		return nil, errors.New("engines file defines no engines")
	}

	out := make(map[domain.Role]uci.EngineConfig, len(file.Engines))
	for name, entry := range file.Engines {
		role := domain.Role(strings.ToLower(strings.TrimSpace(name)))
		switch role {
		case domain.RoleAnalysis, domain.RolePrimary, domain.RoleSecondary:
		default:
			return nil, fmt.Errorf("unknown engine role %q", name)
		}
		cfg := entry.toConfig(fallbackBinary)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("engine %q: %w", name, err)
		}
		out[role] = cfg
	}
	return out, nil
}

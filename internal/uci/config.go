package uci

import (
	"fmt"
	"os"
	"time"

	"github.com/chessmate-desktop/enginecore/internal/domain"
)

const (
	defaultReadyTimeout   = 4 * time.Second
	defaultMoveTime       = 2 * time.Second
	defaultHashMB         = 128
	defaultMalformedLimit = 8

	minLimitElo = 1320
	maxLimitElo = 3190
)

// EngineConfig is fixed for the lifetime of one session. Changing any
// field requires starting a new session. The struct is comparable so the
// pool can reuse sessions on exact config match.
type EngineConfig struct {
	BinaryPath    string
	Threads       int
	HashMB        int
	SkillLevel    int
	MultiPV       int
	LimitStrength bool
	Elo           int

	// MoveTime is the default search budget when a request carries none.
	MoveTime time.Duration

	// ReadyTimeout bounds the startup handshake and isready waits.
	ReadyTimeout time.Duration

	// MalformedLimit is the number of consecutive unparseable info lines
	// tolerated before the search fails with a protocol error.
	MalformedLimit int
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.Threads <= 0 {
		c.Threads = 1
	}
	if c.HashMB <= 0 {
		c.HashMB = defaultHashMB
	}
	if c.MultiPV <= 0 {
		c.MultiPV = 1
	}
	if c.MoveTime <= 0 {
		c.MoveTime = defaultMoveTime
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = defaultReadyTimeout
	}
	if c.MalformedLimit <= 0 {
		c.MalformedLimit = defaultMalformedLimit
	}
	return c
}

// Validate is the full check applied when a config is loaded from disk,
// including the executable lookup. Sessions themselves only range-check:
// a vanished binary at spawn time is a startup failure, not a config one.
func (c EngineConfig) Validate() error {
	if err := c.validateOptions(); err != nil {
		return err
	}
	if _, err := os.Stat(c.BinaryPath); err != nil {
		return domain.Wrap(domain.KindInvalidConfig, fmt.Errorf("engine binary check: %w", err))
	}
	return nil
}

func (c EngineConfig) validateOptions() error {
	if c.BinaryPath == "" {
		return domain.E(domain.KindInvalidConfig, "engine binary path required")
	}
	if c.SkillLevel < 0 || c.SkillLevel > 20 {
		return domain.E(domain.KindInvalidConfig, fmt.Sprintf("skill level %d out of range 0-20", c.SkillLevel))
	}
	if c.MultiPV < 1 {
		return domain.E(domain.KindInvalidConfig, fmt.Sprintf("multipv must be >= 1: %d", c.MultiPV))
	}
	if c.LimitStrength && (c.Elo < minLimitElo || c.Elo > maxLimitElo) {
		return domain.E(domain.KindInvalidConfig, fmt.Sprintf("elo %d out of range %d-%d", c.Elo, minLimitElo, maxLimitElo))
	}
	return nil
}

// ClampElo folds an arbitrary rating into the range the strength limiter
// accepts.
func ClampElo(rating int) int {
	if rating < minLimitElo {
		return minLimitElo
	}
	if rating > maxLimitElo {
		return maxLimitElo
	}
	return rating
}

package uci

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chessmate-desktop/enginecore/internal/domain"
)

type PoolConfig struct {
	// Dialer overrides process spawning; tests inject scripted transports.
	Dialer Dialer
	Logger *zap.Logger
}

// Pool maps each logical role to at most one live session. Sessions for
// different roles never share process state. Acquire and Release are
// serialized with respect to each other; the pool is the sole owner of
// every session it hands out.
type Pool struct {
	dial   Dialer
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[domain.Role]*Session
}

func NewPool(cfg PoolConfig) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		dial:     cfg.Dialer,
		logger:   logger,
		sessions: make(map[domain.Role]*Session),
	}
}

// Acquire returns the live session for role. A Ready session with an
// identical config is reused; anything else is stopped and replaced.
func (p *Pool) Acquire(ctx context.Context, role domain.Role, cfg EngineConfig) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	normalized := cfg.withDefaults()
	if existing := p.sessions[role]; existing != nil {
		if existing.Config() == normalized && existing.State() == StateReady {
			if err := existing.EnsureReady(ctx); err == nil {
				return existing, nil
			}
			p.logger.Warn("pooled session unresponsive, restarting",
				zap.String("role", string(role)))
		}
		existing.Stop()
		delete(p.sessions, role)
	}

	session, err := NewSessionWithDialer(cfg, p.dial, p.logger.With(zap.String("role", string(role))))
	if err != nil {
		return nil, err
	}
	if err := session.Start(ctx); err != nil {
		session.Stop()
		return nil, err
	}
	p.sessions[role] = session
	return session, nil
}

// Release stops and discards the session bound to role, if any.
func (p *Pool) Release(role domain.Role) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if session := p.sessions[role]; session != nil {
		session.Stop()
		delete(p.sessions, role)
	}
}

// ReleaseAll cancels any in-flight request on every live session and
// stops them all. Must be called on game end or shutdown; afterwards no
// engine process remains.
func (p *Pool) ReleaseAll(ctx context.Context) error {
	p.mu.Lock()
	sessions := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.sessions = make(map[domain.Role]*Session)
	p.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, session := range sessions {
		g.Go(func() error {
			_ = session.Cancel(ctx)
			session.Stop()
			return nil
		})
	}
	return g.Wait()
}

// Live reports how many sessions the pool currently owns.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

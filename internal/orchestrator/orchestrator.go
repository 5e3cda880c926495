// Package orchestrator arbitrates turn-taking between humans, engines
// and profile-driven engines. The loop is sequential by construction:
// the next move request is dispatched only after the previous result has
// been committed, so turn order never depends on engine latency.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chessmate-desktop/enginecore/internal/domain"
	"github.com/chessmate-desktop/enginecore/internal/style"
	"github.com/chessmate-desktop/enginecore/internal/uci"
)

// Game is the external collaborator holding the board. The orchestrator
// never detects termination itself; it only reacts to IsTerminal.
type Game interface {
	FEN() string
	MovesUCI() []string
	SideToMove() domain.Color
	ApplyUCI(move string) error
	IsTerminal() bool
}

// Listener receives status notifications for the UI layer.
type Listener interface {
	OnMoveApplied(result domain.MoveResult, by Participant)
	OnThinking(by Participant)
	OnSessionError(role domain.Role, kind domain.ErrorKind)
}

type NopListener struct{}

func (NopListener) OnMoveApplied(domain.MoveResult, Participant) {}
func (NopListener) OnThinking(Participant)                       {}
func (NopListener) OnSessionError(domain.Role, domain.ErrorKind) {}

type Config struct {
	Pool     *uci.Pool
	Game     Game
	Mode     PlayMode
	Listener Listener
	Logger   *zap.Logger
	Seed     int64
}

type humanMove struct {
	move  string
	reply chan error
}

type Orchestrator struct {
	pool     *uci.Pool
	game     Game
	mode     PlayMode
	listener Listener
	logger   *zap.Logger

	randMu sync.Mutex
	rand   *rand.Rand

	humanMoves chan humanMove
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Pool == nil && cfg.Mode.HasEngines() {
		return nil, fmt.Errorf("mode %s requires a session pool", cfg.Mode.Kind)
	}
	if cfg.Game == nil {
		return nil, fmt.Errorf("game collaborator required")
	}
	if cfg.Mode.Kind == "" {
		return nil, fmt.Errorf("play mode required")
	}
	if cfg.Listener == nil {
		cfg.Listener = NopListener{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Orchestrator{
		pool:       cfg.Pool,
		game:       cfg.Game,
		mode:       cfg.Mode,
		listener:   cfg.Listener,
		logger:     cfg.Logger.With(zap.String("mode", string(cfg.Mode.Kind))),
		rand:       rand.New(rand.NewSource(seed)),
		humanMoves: make(chan humanMove),
	}, nil
}

// Run drives the game until the board reports a terminal position or a
// session fails. A session failure halts automatic play for that side
// and is surfaced to the caller; the orchestrator never retries or
// substitutes engines on its own.
func (o *Orchestrator) Run(ctx context.Context) error {
	for !o.game.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		side := o.game.SideToMove()
		seat := o.mode.seatFor(side)
		if seat.Human {
			if err := o.waitHumanMove(ctx); err != nil {
				return err
			}
			continue
		}
		if err := o.playEngineTurn(ctx, side, seat); err != nil {
			o.listener.OnSessionError(seat.Role, domain.KindOf(err))
			o.logger.Error("automatic play halted",
				zap.String("side", string(side)),
				zap.String("role", string(seat.Role)),
				zap.Error(err))
			return err
		}
	}
	return nil
}

// SubmitHumanMove delivers a human move to a waiting Run loop and
// reports whether the board accepted it. An illegal move leaves the turn
// with the human.
func (o *Orchestrator) SubmitHumanMove(ctx context.Context, move string) error {
	hm := humanMove{move: move, reply: make(chan error, 1)}
	select {
	case o.humanMoves <- hm:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-hm.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) waitHumanMove(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case hm := <-o.humanMoves:
		err := o.game.ApplyUCI(hm.move)
		hm.reply <- err
		if err != nil {
			// Turn stays with the human; keep waiting.
			return nil
		}
		o.listener.OnMoveApplied(domain.MoveResult{Move: hm.move}, ParticipantHuman)
		return nil
	}
}

func (o *Orchestrator) playEngineTurn(ctx context.Context, side domain.Color, seat Seat) error {
	session, err := o.pool.Acquire(ctx, seat.Role, seat.Config)
	if err != nil {
		return err
	}

	o.listener.OnThinking(seat.participant())
	searchStart := time.Now()
	res, err := session.RequestMove(ctx, domain.MoveRequest{
		FEN:        "startpos",
		Moves:      o.game.MovesUCI(),
		Side:       side,
		TimeBudget: seat.Config.MoveTime,
	})
	if err != nil {
		return err
	}

	chosen, perturbed := bestCandidate(res)
	if seat.Profile != nil {
		chosen, perturbed, err = style.Pick(*seat.Profile, res.Candidates, o.random())
		if err != nil {
			return fmt.Errorf("select candidate: %w", err)
		}
		// Emulate deliberation: hold the result until the sampled think
		// time has elapsed, search time included. Only this turn waits;
		// other sessions keep running.
		delay := style.ThinkTime(*seat.Profile, o.random()) - time.Since(searchStart)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	result := domain.MoveResult{
		Move:      chosen.Move,
		EvalCP:    chosen.EvalCP,
		HasEval:   chosen.HasEval,
		Perturbed: perturbed,
	}
	if err := o.game.ApplyUCI(result.Move); err != nil {
		return err
	}
	o.listener.OnMoveApplied(result, seat.participant())
	o.logger.Debug("move committed",
		zap.String("side", string(side)),
		zap.String("move", result.Move),
		zap.Bool("perturbed", result.Perturbed))
	return nil
}

// Analyze runs a one-shot search on the current position using the
// analysis role. Safe to call while a game is in progress: the analysis
// session is independent of the opponent sessions.
func (o *Orchestrator) Analyze(ctx context.Context, cfg uci.EngineConfig) (uci.SearchResult, error) {
	session, err := o.pool.Acquire(ctx, domain.RoleAnalysis, cfg)
	if err != nil {
		return uci.SearchResult{}, err
	}
	return session.RequestMove(ctx, domain.MoveRequest{
		FEN:        "startpos",
		Moves:      o.game.MovesUCI(),
		Side:       o.game.SideToMove(),
		TimeBudget: cfg.MoveTime,
	})
}

func bestCandidate(res uci.SearchResult) (uci.Candidate, bool) {
	for _, c := range res.Candidates {
		if c.Move == res.BestMove {
			return c, false
		}
	}
	if len(res.Candidates) > 0 {
		return res.Candidates[0], false
	}
	return uci.Candidate{Move: res.BestMove}, false
}

// random derives an independent source so concurrent turns never share
// rand state.
func (o *Orchestrator) random() *rand.Rand {
	o.randMu.Lock()
	seed := o.rand.Int63()
	o.randMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

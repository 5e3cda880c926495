package uci

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chessmate-desktop/enginecore/internal/domain"
)

const (
	// stopGrace bounds how long a cancelled or aborted search may keep the
	// engine busy before it is force-killed.
	stopGrace = 2 * time.Second

	newGameRetryAttempts = 3
	newGameRetryDelay    = 150 * time.Millisecond
)

type State int

const (
	StateStopped State = iota
	StateStarting
	StateReady
	StateBusy
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

type Candidate struct {
	Move      string
	EvalCP    int
	HasEval   bool
	Principal []string
}

type SearchResult struct {
	Candidates []Candidate
	BestMove   string
}

// Dialer opens the wire to a fresh engine process.
type Dialer func() (Transport, error)

// Session owns one external engine process: handshake, configuration,
// search requests and teardown. At most one request may be outstanding;
// a second one fails with SessionBusy rather than queueing.
type Session struct {
	id     string
	cfg    EngineConfig
	dial   Dialer
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	crashed  bool
	tr       Transport
	busyDone chan struct{}
	lastSent string
}

func NewSession(cfg EngineConfig, logger *zap.Logger) (*Session, error) {
	return NewSessionWithDialer(cfg, nil, logger)
}

// NewSessionWithDialer builds a session over a custom transport dialer.
// A nil dialer spawns the configured binary.
func NewSessionWithDialer(cfg EngineConfig, dial Dialer, logger *zap.Logger) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validateOptions(); err != nil {
		return nil, err
	}
	if dial == nil {
		path := cfg.BinaryPath
		dial = func() (Transport, error) { return NewExecTransport(path) }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	s := &Session{
		id:     id,
		cfg:    cfg,
		dial:   dial,
		logger: logger.With(zap.String("session_id", id[:8])),
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Config() EngineConfig { return s.cfg }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastPosition reports the most recent position sent to the engine.
func (s *Session) LastPosition() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSent
}

// Start spawns the engine and runs the protocol handshake: uci/uciok,
// the configure batch, then an isready sync. It fails with StartupFailed
// when the process cannot be spawned and StartupTimeout when the engine
// does not confirm readiness in time.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return domain.E(domain.KindSessionBusy, fmt.Sprintf("start in state %s", s.state))
	}
	if s.crashed {
		s.mu.Unlock()
		return domain.E(domain.KindEngineCrashed, "session crashed; create a new one")
	}
	s.state = StateStarting
	s.mu.Unlock()

	tr, err := s.dial()
	if err != nil {
		s.setStopped(false)
		return domain.Wrap(domain.KindStartupFailed, err)
	}
	s.mu.Lock()
	s.tr = tr
	s.mu.Unlock()

	if err := s.handshake(ctx, tr); err != nil {
		tr.Close()
		s.setStopped(false)
		return err
	}

	s.mu.Lock()
	s.state = StateReady
	s.mu.Unlock()
	s.logger.Info("engine session ready",
		zap.String("binary", s.cfg.BinaryPath),
		zap.Int("skill", s.cfg.SkillLevel),
		zap.Int("multipv", s.cfg.MultiPV))
	return nil
}

func (s *Session) handshake(ctx context.Context, tr Transport) error {
	initCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()

	if err := tr.Send("uci"); err != nil {
		return domain.Wrap(domain.KindStartupFailed, fmt.Errorf("send uci: %w", err))
	}
	if err := awaitToken(initCtx, tr, "uciok"); err != nil {
		return startupErr("wait uciok", err)
	}

	for _, cmd := range s.configureCommands() {
		if err := tr.Send(cmd); err != nil {
			return domain.Wrap(domain.KindStartupFailed, fmt.Errorf("apply options: %w", err))
		}
	}

	if err := tr.Send("isready"); err != nil {
		return domain.Wrap(domain.KindStartupFailed, fmt.Errorf("send isready: %w", err))
	}
	if err := awaitToken(initCtx, tr, "readyok"); err != nil {
		return startupErr("wait readyok", err)
	}
	return nil
}

func (s *Session) configureCommands() []string {
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d", s.cfg.Threads),
		fmt.Sprintf("setoption name Hash value %d", s.cfg.HashMB),
		fmt.Sprintf("setoption name Skill Level value %d", s.cfg.SkillLevel),
		fmt.Sprintf("setoption name MultiPV value %d", s.cfg.MultiPV),
		"setoption name Move Overhead value 100",
	}
	if s.cfg.LimitStrength {
		cmds = append(cmds,
			"setoption name UCI_LimitStrength value true",
			fmt.Sprintf("setoption name UCI_Elo value %d", s.cfg.Elo))
	}
	return cmds
}

func startupErr(stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Wrap(domain.KindStartupTimeout, fmt.Errorf("%s: %w", stage, err))
	}
	return domain.Wrap(domain.KindStartupFailed, fmt.Errorf("%s: %w", stage, err))
}

// EnsureReady runs an isready/readyok sync. Used by the pool before
// handing out a reused session.
func (s *Session) EnsureReady(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady {
		st := s.state
		s.mu.Unlock()
		return domain.E(domain.KindSessionBusy, fmt.Sprintf("isready in state %s", st))
	}
	tr := s.tr
	s.mu.Unlock()

	readyCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()
	if err := tr.Send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := awaitToken(readyCtx, tr, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// NewGame resets engine state between games.
func (s *Session) NewGame(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady {
		st := s.state
		s.mu.Unlock()
		return domain.E(domain.KindSessionBusy, fmt.Sprintf("ucinewgame in state %s", st))
	}
	tr := s.tr
	s.mu.Unlock()

	if err := tr.Send("ucinewgame"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}
	for attempt := 1; attempt <= newGameRetryAttempts; attempt++ {
		err := s.EnsureReady(ctx)
		if err == nil {
			return nil
		}
		if attempt == newGameRetryAttempts {
			return err
		}
		s.logger.Warn("ensure ready retry after ucinewgame",
			zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
	return nil
}

// RequestMove sends the position followed by a time-bounded go command,
// collects streamed info lines (last complete line per multipv slot wins)
// and resolves on the terminating bestmove line. While a request is in
// flight the session is Busy and rejects further work with SessionBusy.
func (s *Session) RequestMove(ctx context.Context, req domain.MoveRequest) (SearchResult, error) {
	budget := req.TimeBudget
	if budget <= 0 {
		budget = s.cfg.MoveTime
	}

	s.mu.Lock()
	if s.crashed {
		s.mu.Unlock()
		return SearchResult{}, domain.E(domain.KindEngineCrashed, "session crashed")
	}
	if s.state != StateReady {
		st := s.state
		s.mu.Unlock()
		return SearchResult{}, domain.E(domain.KindSessionBusy, fmt.Sprintf("request in state %s", st))
	}
	s.state = StateBusy
	s.busyDone = make(chan struct{})
	tr := s.tr
	s.lastSent = req.FEN
	s.mu.Unlock()

	positionCmd := buildPositionCommand(req.FEN, req.Moves)
	if err := tr.Send(positionCmd); err != nil {
		return SearchResult{}, s.failBusy(fmt.Errorf("send position: %w", err))
	}
	goCmd := "go movetime " + strconv.FormatInt(budget.Milliseconds(), 10)
	if err := tr.Send(goCmd); err != nil {
		return SearchResult{}, s.failBusy(fmt.Errorf("send go: %w", err))
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchDeadline(budget))
	defer cancel()

	candidates := make(map[int]Candidate)
	malformedRun := 0

	for {
		line, err := tr.Recv(searchCtx)
		if err != nil {
			if ctx.Err() != nil {
				return SearchResult{}, s.abortBusy(ctx.Err(), tr, searchCtx)
			}
			s.logger.Error("engine read failed mid-search",
				zap.String("position", strings.TrimSpace(positionCmd)),
				zap.String("go", goCmd),
				zap.Error(err))
			return SearchResult{}, s.failBusy(fmt.Errorf("read line: %w", err))
		}
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "info string"):
			// Engine chatter, not a scored line.
		case strings.HasPrefix(line, "info "):
			if mv, cand, ok := parseInfo(line); ok {
				candidates[mv] = cand
				malformedRun = 0
			} else {
				malformedRun++
				if malformedRun > s.cfg.MalformedLimit {
					return SearchResult{}, s.failBusyKind(domain.KindProtocolError,
						fmt.Errorf("%d consecutive malformed lines, last: %q", malformedRun, line))
				}
			}
		case strings.HasPrefix(line, "bestmove"):
			parts := strings.Fields(line)
			if len(parts) < 2 {
				return SearchResult{}, s.failBusyKind(domain.KindProtocolError,
					fmt.Errorf("bestmove line without a move: %q", line))
			}
			result := SearchResult{Candidates: collapseCandidates(candidates), BestMove: parts[1]}
			if len(result.Candidates) == 0 {
				result.Candidates = []Candidate{{Move: result.BestMove, Principal: []string{result.BestMove}}}
			}
			s.finishBusy(StateReady)
			return result, nil
		case line == "readyok":
			// A late readyok from an earlier sync is harmless.
		default:
			malformedRun++
			if malformedRun > s.cfg.MalformedLimit {
				return SearchResult{}, s.failBusyKind(domain.KindProtocolError,
					fmt.Errorf("%d consecutive malformed lines, last: %q", malformedRun, line))
			}
		}
	}
}

// abortBusy handles caller cancellation: ask the engine to stop, give it
// the grace period to emit bestmove, force-kill otherwise.
func (s *Session) abortBusy(cause error, tr Transport, searchCtx context.Context) error {
	_ = tr.Send("stop")
	graceCtx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	for {
		line, err := tr.Recv(graceCtx)
		if err != nil {
			_ = tr.Kill()
			s.crashBusy()
			return cause
		}
		if strings.HasPrefix(line, "bestmove") {
			s.finishBusy(StateReady)
			return cause
		}
	}
}

// failBusy tears the session down as crashed; the transport is unusable.
func (s *Session) failBusy(err error) error {
	return s.failBusyKind(domain.KindEngineCrashed, err)
}

func (s *Session) failBusyKind(kind domain.ErrorKind, err error) error {
	s.mu.Lock()
	tr := s.tr
	s.mu.Unlock()
	if tr != nil {
		_ = tr.Kill()
		_ = tr.Close()
	}
	s.crashBusy()
	return domain.Wrap(kind, err)
}

func (s *Session) finishBusy(next State) {
	s.mu.Lock()
	if s.state == StateBusy {
		s.state = next
	}
	if s.busyDone != nil {
		close(s.busyDone)
		s.busyDone = nil
	}
	s.mu.Unlock()
}

func (s *Session) crashBusy() {
	s.mu.Lock()
	s.crashed = true
	if s.state == StateBusy || s.state == StateReady {
		s.state = StateStopped
	}
	if s.busyDone != nil {
		close(s.busyDone)
		s.busyDone = nil
	}
	s.mu.Unlock()
}

func (s *Session) setStopped(crashed bool) {
	s.mu.Lock()
	s.state = StateStopped
	s.crashed = s.crashed || crashed
	s.tr = nil
	s.mu.Unlock()
}

// Cancel asks a busy engine to stop early. If the engine cooperates the
// in-flight request resolves normally and the session returns to Ready;
// otherwise the process is force-killed after the grace period and the
// session reports EngineCrashed on next use.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateBusy {
		s.mu.Unlock()
		return nil
	}
	tr := s.tr
	done := s.busyDone
	s.mu.Unlock()

	_ = tr.Send("stop")
	select {
	case <-done:
		return nil
	case <-time.After(stopGrace):
	case <-ctx.Done():
	}

	s.mu.Lock()
	s.crashed = true
	s.mu.Unlock()
	_ = tr.Kill()

	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return nil
}

// Stop quits the engine and releases the process. It is idempotent, never
// returns an error, and always leaves the session Stopped even when the
// process is already gone.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateStopped && s.tr == nil {
		s.mu.Unlock()
		return
	}
	tr := s.tr
	s.tr = nil
	s.state = StateStopping
	if s.busyDone != nil {
		close(s.busyDone)
		s.busyDone = nil
	}
	s.mu.Unlock()

	if tr != nil {
		_ = tr.Send("quit")
		_ = tr.Close()
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.logger.Debug("engine session stopped")
}

func searchDeadline(budget time.Duration) time.Duration {
	// Safety factor over the nominal budget; a session that stays busy
	// past this is treated as crashed.
	return budget*3 + 2*time.Second
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	return sb.String()
}

func awaitToken(ctx context.Context, tr Transport, token string) error {
	for {
		line, err := tr.Recv(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func parseInfo(line string) (int, Candidate, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return 0, Candidate{}, false
	}
	var (
		multipv = 1
		evalCP  int
		evalSet bool
		pvIdx   = -1
	)

	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					multipv = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				kind := parts[i+1]
				val := parts[i+2]
				switch kind {
				case "cp":
					if v, err := strconv.Atoi(val); err == nil {
						evalCP = v
						evalSet = true
					}
				case "mate":
					if v, err := strconv.Atoi(val); err == nil {
						const mateValue = 30000
						if v >= 0 {
							evalCP = mateValue
						} else {
							evalCP = -mateValue
						}
						evalSet = true
					}
				}
				i += 2
			}
		case "pv":
			pvIdx = i + 1
			i = len(parts)
		}
	}

	if pvIdx == -1 || pvIdx >= len(parts) {
		return 0, Candidate{}, false
	}
	principal := parts[pvIdx:]
	if len(principal) == 0 {
		return 0, Candidate{}, false
	}

	cand := Candidate{
		Move:      principal[0],
		EvalCP:    evalCP,
		HasEval:   evalSet,
		Principal: append([]string(nil), principal...),
	}
	return multipv, cand, true
}

func collapseCandidates(m map[int]Candidate) []Candidate {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	result := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		result = append(result, m[k])
	}
	return result
}

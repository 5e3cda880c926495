package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appcfg "github.com/chessmate-desktop/enginecore/internal/config"
	"github.com/chessmate-desktop/enginecore/internal/domain"
	"github.com/chessmate-desktop/enginecore/internal/game"
	"github.com/chessmate-desktop/enginecore/internal/history"
	"github.com/chessmate-desktop/enginecore/internal/obslog"
	"github.com/chessmate-desktop/enginecore/internal/orchestrator"
	"github.com/chessmate-desktop/enginecore/internal/profilecache"
	"github.com/chessmate-desktop/enginecore/internal/style"
	"github.com/chessmate-desktop/enginecore/internal/uci"
)

func main() {
	var (
		modeName    = flag.String("mode", "engine-vs-engine", "play mode: engine-vs-engine, profile-vs-profile, profile-vs-engine")
		whitePlayer = flag.String("white-player", "", "archived player id modeled by the white profile")
		blackPlayer = flag.String("black-player", "", "archived player id modeled by the black profile")
		whiteRating = flag.Int("white-rating", 1500, "synthetic rating for white when no archive is available")
		blackRating = flag.Int("black-rating", 1800, "synthetic rating for black when no archive is available")
		seed        = flag.Int64("seed", 0, "selector random seed, 0 for time-based")
	)
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	engines, err := loadEngines(cfg)
	if err != nil {
		log.Fatalf("engine config error: %v", err)
	}

	var repo history.Repository
	if cfg.DatabaseURL != "" {
		repo, err = history.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("history repository error: %v", err)
		}
		defer repo.Close()
		if err := repo.InitSchema(context.Background()); err != nil {
			log.Fatalf("history schema error: %v", err)
		}
	}

	var cache *profilecache.Store
	if cfg.RedisURL != "" {
		cache, err = profilecache.NewStoreFromURL(cfg.RedisURL, cfg.ProfileCacheTTL())
		if err != nil {
			log.Fatalf("profile cache error: %v", err)
		}
		defer cache.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := uci.NewPool(uci.PoolConfig{Logger: logger})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pool.ReleaseAll(shutdownCtx); err != nil {
			logger.Warn("pool teardown", zap.Error(err))
		}
	}()

	binary := engineFor(engines, domain.RolePrimary).BinaryPath

	mode, err := buildMode(ctx, *modeName, engines, modeParams{
		binary:      binary,
		cache:       cache,
		repo:        repo,
		whitePlayer: *whitePlayer,
		blackPlayer: *blackPlayer,
		whiteRating: *whiteRating,
		blackRating: *blackRating,
	})
	if err != nil {
		log.Fatalf("mode error: %v", err)
	}

	board := game.NewBoard()
	orch, err := orchestrator.New(orchestrator.Config{
		Pool:     pool,
		Game:     board,
		Mode:     mode,
		Listener: logListener{logger: logger},
		Logger:   logger,
		Seed:     *seed,
	})
	if err != nil {
		log.Fatalf("orchestrator error: %v", err)
	}

	startedAt := time.Now()
	runErr := orch.Run(ctx)
	result, method := board.Result()
	logger.Info("game over",
		zap.String("result", result),
		zap.String("method", method),
		zap.Int("moves", board.MoveCount()),
		zap.Error(runErr))

	if repo != nil && board.IsTerminal() {
		archive(ctx, repo, board, *whitePlayer, *blackPlayer, startedAt, logger)
	}
	if runErr != nil && ctx.Err() == nil {
		os.Exit(1)
	}
}

func loadEngines(cfg *appcfg.AppConfig) (map[domain.Role]uci.EngineConfig, error) {
	if cfg.EnginesFile != "" {
		return appcfg.LoadEngines(cfg.EnginesFile, cfg.EnginePath)
	}
	base := uci.EngineConfig{
		BinaryPath: cfg.EnginePath,
		MoveTime:   cfg.DefaultMoveTime(),
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	return map[domain.Role]uci.EngineConfig{
		domain.RoleAnalysis:  base,
		domain.RolePrimary:   base,
		domain.RoleSecondary: base,
	}, nil
}

// engineFor falls back to the primary entry when a role is absent from
// the engines file.
func engineFor(engines map[domain.Role]uci.EngineConfig, role domain.Role) uci.EngineConfig {
	if cfg, ok := engines[role]; ok {
		return cfg
	}
	return engines[domain.RolePrimary]
}

type modeParams struct {
	binary      string
	cache       *profilecache.Store
	repo        history.Repository
	whitePlayer string
	blackPlayer string
	whiteRating int
	blackRating int
}

func buildMode(ctx context.Context, name string, engines map[domain.Role]uci.EngineConfig, p modeParams) (orchestrator.PlayMode, error) {
	switch orchestrator.ModeKind(name) {
	case orchestrator.ModeEngineVsEngine:
		return orchestrator.EngineVsEngine(engineFor(engines, domain.RolePrimary), engineFor(engines, domain.RoleSecondary)), nil
	case orchestrator.ModeProfileVsProfile:
		white, err := resolveProfile(ctx, p, p.whitePlayer, p.whiteRating)
		if err != nil {
			return orchestrator.PlayMode{}, err
		}
		black, err := resolveProfile(ctx, p, p.blackPlayer, p.blackRating)
		if err != nil {
			return orchestrator.PlayMode{}, err
		}
		return orchestrator.ProfileVsProfile(p.binary, white, black), nil
	case orchestrator.ModeProfileVsEngine:
		white, err := resolveProfile(ctx, p, p.whitePlayer, p.whiteRating)
		if err != nil {
			return orchestrator.PlayMode{}, err
		}
		return orchestrator.ProfileVsEngine(p.binary, white, domain.White, engineFor(engines, domain.RoleSecondary)), nil
	default:
		return orchestrator.PlayMode{}, fmt.Errorf("unsupported mode for the demo runner: %q", name)
	}
}

// resolveProfile finds the style profile for a player: cache first, then
// the game archive, then a synthetic single-game summary at the given
// rating for runs without any data backend.
func resolveProfile(ctx context.Context, p modeParams, playerID string, rating int) (style.Profile, error) {
	if playerID != "" && p.cache != nil {
		if cached, err := p.cache.Load(ctx, playerID); err == nil && cached != nil {
			return *cached, nil
		}
	}

	var summary domain.GameHistorySummary
	if playerID != "" && p.repo != nil {
		var err error
		summary, err = p.repo.SummaryFor(ctx, playerID)
		if err != nil {
			return style.Profile{}, err
		}
	}
	if summary.TotalGames == 0 {
		summary = domain.GameHistorySummary{
			PlayerID:          playerID,
			TotalGames:        1,
			AverageRating:     rating,
			WinRate:           50,
			AverageGameLength: 40,
			AggressiveScore:   50,
			TacticalScore:     50,
		}
	}

	profile, err := style.Derive(summary)
	if err != nil {
		return style.Profile{}, err
	}
	if playerID != "" && p.cache != nil {
		if err := p.cache.Save(ctx, profile); err != nil {
			obslog.L().Warn("profile cache save", zap.String("player", playerID), zap.Error(err))
		}
	}
	return profile, nil
}

func archive(ctx context.Context, repo history.Repository, board *game.Board, whitePlayer, blackPlayer string, startedAt time.Time, logger *zap.Logger) {
	result, _ := board.Result()
	moves := board.MovesUCI()
	opening := ""
	if len(moves) > 0 {
		opening = moves[0]
	}
	sessionUUID := uuid.NewString()
	for playerID, color := range map[string]domain.Color{whitePlayer: domain.White, blackPlayer: domain.Black} {
		if playerID == "" {
			continue
		}
		record := &domain.GameRecord{
			SessionUUID: sessionUUID + "-" + string(color),
			PlayerID:    playerID,
			Color:       color,
			Result:      result,
			MovesUCI:    moves,
			MoveCount:   len(moves),
			Opening:     opening,
			StartedAt:   startedAt,
			EndedAt:     time.Now(),
		}
		if _, err := repo.InsertGame(ctx, record); err != nil && err != history.ErrDuplicateGame {
			logger.Warn("archive game", zap.String("player", playerID), zap.Error(err))
		}
	}
}

type logListener struct {
	logger *zap.Logger
}

func (l logListener) OnMoveApplied(result domain.MoveResult, by orchestrator.Participant) {
	l.logger.Info("move applied",
		zap.String("move", result.Move),
		zap.String("by", string(by)),
		zap.Bool("perturbed", result.Perturbed))
}

func (l logListener) OnThinking(by orchestrator.Participant) {
	l.logger.Debug("thinking", zap.String("by", string(by)))
}

func (l logListener) OnSessionError(role domain.Role, kind domain.ErrorKind) {
	l.logger.Error("session failed",
		zap.String("role", string(role)),
		zap.String("kind", string(kind)))
}

// Package history archives finished games and aggregates them into the
// per-player summaries style derivation consumes.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/chessmate-desktop/enginecore/internal/domain"
)

var ErrDuplicateGame = errors.New("game already archived")

type Repository interface {
	InitSchema(ctx context.Context) error
	InsertGame(ctx context.Context, game *domain.GameRecord) (int64, error)
	RecentGames(ctx context.Context, playerID string, limit int) ([]*domain.GameRecord, error)
	SummaryFor(ctx context.Context, playerID string) (domain.GameHistorySummary, error)
	Close() error
}

type repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &repository{db: db}, nil
}

func NewRepositoryWithDB(db *sql.DB) Repository {
	return &repository{db: db}
}

// InitSchema creates the archive tables when they do not exist yet.
func (r *repository) InitSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS archived_games (
			id BIGSERIAL PRIMARY KEY,
			session_uuid TEXT NOT NULL UNIQUE,
			player_id TEXT NOT NULL,
			color TEXT NOT NULL,
			rating INT NOT NULL DEFAULT 0,
			result TEXT NOT NULL,
			moves_uci JSONB NOT NULL,
			move_count INT NOT NULL,
			opening TEXT NOT NULL DEFAULT '',
			avg_move_time_ms BIGINT NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS archived_games_player_idx
			ON archived_games (player_id, ended_at DESC)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init archive schema: %w", err)
	}
	return nil
}

func (r *repository) InsertGame(ctx context.Context, game *domain.GameRecord) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil game record")
	}
	if strings.TrimSpace(game.SessionUUID) == "" {
		game.SessionUUID = uuid.NewString()
	}
	movesUCI, err := json.Marshal(game.MovesUCI)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_uci: %w", err)
	}

	const query = `
		INSERT INTO archived_games (
			session_uuid,
			player_id,
			color,
			rating,
			result,
			moves_uci,
			move_count,
			opening,
			avg_move_time_ms,
			started_at,
			ended_at
		)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11)
		ON CONFLICT (session_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		game.SessionUUID,
		game.PlayerID,
		string(game.Color),
		game.Rating,
		game.Result,
		movesUCI,
		game.MoveCount,
		game.Opening,
		game.AvgMoveTime.Milliseconds(),
		game.StartedAt,
		game.EndedAt,
	).Scan(&id)
	if err == sql.ErrNoRows || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert archived game: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) RecentGames(ctx context.Context, playerID string, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			id,
			session_uuid,
			player_id,
			color,
			rating,
			result,
			moves_uci,
			move_count,
			opening,
			avg_move_time_ms,
			started_at,
			ended_at
		FROM archived_games
		WHERE player_id = $1
		ORDER BY ended_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select archived games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.GameRecord, 0, limit)
	for rows.Next() {
		var (
			game          domain.GameRecord
			color         string
			movesUCIJSON  []byte
			avgMoveTimeMS sql.NullInt64
		)
		if err := rows.Scan(
			&game.ID,
			&game.SessionUUID,
			&game.PlayerID,
			&color,
			&game.Rating,
			&game.Result,
			&movesUCIJSON,
			&game.MoveCount,
			&game.Opening,
			&avgMoveTimeMS,
			&game.StartedAt,
			&game.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scan archived game: %w", err)
		}
		game.Color = domain.Color(color)
		if avgMoveTimeMS.Valid {
			game.AvgMoveTime = time.Duration(avgMoveTimeMS.Int64) * time.Millisecond
		}
		if err := json.Unmarshal(movesUCIJSON, &game.MovesUCI); err != nil {
			return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
		}
		games = append(games, &game)
	}
	return games, rows.Err()
}

// SummaryFor aggregates the player's archive into the statistics style
// derivation consumes. A player without games yields a zero-game summary;
// rejecting it is the derivation's concern, not the archive's.
func (r *repository) SummaryFor(ctx context.Context, playerID string) (domain.GameHistorySummary, error) {
	const query = `
		SELECT
			COUNT(*),
			COALESCE(AVG(rating) FILTER (WHERE rating > 0), 0),
			COALESCE(AVG(CASE WHEN result = color THEN 100.0 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN result = 'draw' THEN 100.0 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN result <> color AND result <> 'draw' THEN 100.0 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN color = 'white' AND result = 'white' THEN 100.0
				WHEN color = 'white' THEN 0 END), 0),
			COALESCE(AVG(CASE WHEN color = 'black' AND result = 'black' THEN 100.0
				WHEN color = 'black' THEN 0 END), 0),
			COALESCE(AVG(move_count), 0),
			COALESCE(AVG(avg_move_time_ms), 0)
		FROM archived_games
		WHERE player_id = $1`

	summary := domain.GameHistorySummary{PlayerID: playerID}
	var (
		avgRating   float64
		avgMoveTime float64
	)
	err := r.db.QueryRowContext(ctx, query, playerID).Scan(
		&summary.TotalGames,
		&avgRating,
		&summary.WinRate,
		&summary.DrawRate,
		&summary.LossRate,
		&summary.WhiteWinRate,
		&summary.BlackWinRate,
		&summary.AverageGameLength,
		&avgMoveTime,
	)
	if err != nil {
		return domain.GameHistorySummary{}, fmt.Errorf("aggregate archive: %w", err)
	}
	summary.AverageRating = int(avgRating)
	summary.AverageMoveTime = time.Duration(avgMoveTime) * time.Millisecond

	openings, err := r.topOpenings(ctx, playerID, 5)
	if err != nil {
		return domain.GameHistorySummary{}, err
	}
	summary.TopOpenings = openings

	summary.AggressiveScore = aggressiveScore(summary.AverageGameLength, summary.WinRate)
	summary.TacticalScore = tacticalScore(summary.AverageGameLength, openings)
	return summary, nil
}

func (r *repository) topOpenings(ctx context.Context, playerID string, limit int) ([]domain.OpeningFrequency, error) {
	const query = `
		SELECT opening, COUNT(*) AS n
		FROM archived_games
		WHERE player_id = $1 AND opening <> ''
		GROUP BY opening
		ORDER BY n DESC, opening ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select top openings: %w", err)
	}
	defer rows.Close()

	var out []domain.OpeningFrequency
	for rows.Next() {
		var f domain.OpeningFrequency
		if err := rows.Scan(&f.Move, &f.Count); err != nil {
			return nil, fmt.Errorf("scan opening: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *repository) Close() error {
	return r.db.Close()
}

// Shorter decisive games read as more aggressive. Normalized against the
// typical 20-60 move range.
func aggressiveScore(avgGameLength, winRate float64) float64 {
	lengthScore := clampScore((60 - avgGameLength) * 2)
	return clampScore(lengthScore*0.7 + winRate*0.3)
}

var tacticalOpenings = []string{
	"sicilian", "dragon", "najdorf", "king", "gambit",
	"attack", "defense", "counter", "benoni", "dutch",
}

func tacticalScore(avgGameLength float64, openings []domain.OpeningFrequency) float64 {
	tactical := 0
	total := 0
	for _, o := range openings {
		name := strings.ToLower(o.Move)
		total += o.Count
		for _, marker := range tacticalOpenings {
			if strings.Contains(name, marker) {
				tactical += o.Count
				break
			}
		}
	}
	openingScore := 50.0
	if total > 0 {
		openingScore = float64(tactical) / float64(total) * 100
	}
	lengthScore := clampScore((60 - avgGameLength) * 1.5)
	return clampScore(openingScore*0.6 + lengthScore*0.4)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

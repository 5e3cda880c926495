package domain

import "time"

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Role is the logical slot a session is bound to within one game.
type Role string

const (
	RoleAnalysis  Role = "analysis"
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

type MoveRequest struct {
	FEN        string
	Moves      []string
	Side       Color
	TimeBudget time.Duration
}

type MoveResult struct {
	Move      string
	EvalCP    int
	HasEval   bool
	Perturbed bool
}

type OpeningFrequency struct {
	Move  string
	Count int
}

// GameHistorySummary is the per-player aggregate supplied by the archive.
// The core only reads it; derivation rejects summaries with zero games.
type GameHistorySummary struct {
	PlayerID          string
	TotalGames        int
	AverageRating     int
	WinRate           float64
	DrawRate          float64
	LossRate          float64
	WhiteWinRate      float64
	BlackWinRate      float64
	AverageGameLength float64
	AverageMoveTime   time.Duration
	TopOpenings       []OpeningFrequency
	AggressiveScore   float64
	TacticalScore     float64
}

type GameRecord struct {
	ID          int64
	SessionUUID string
	PlayerID    string
	Color       Color
	Rating      int
	Result      string
	MovesUCI    []string
	MoveCount   int
	Opening     string
	AvgMoveTime time.Duration
	StartedAt   time.Time
	EndedAt     time.Time
}

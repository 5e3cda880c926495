// Package game adapts the chess rules library to the surface the
// orchestration core consumes: position serialization, side to move,
// move application and terminal detection.
package game

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/chessmate-desktop/enginecore/internal/domain"
)

type Board struct {
	g     *nchess.Game
	moves []string
}

func NewBoard() *Board {
	return &Board{g: nchess.NewGame()}
}

// Reconstruct rebuilds a board from the start position by applying the
// stored UCI moves in order.
func Reconstruct(moves []string) (*Board, error) {
	b := NewBoard()
	for _, mv := range moves {
		if err := b.ApplyUCI(mv); err != nil {
			return nil, fmt.Errorf("replay move %q: %w", mv, err)
		}
	}
	return b, nil
}

func (b *Board) FEN() string {
	return b.g.FEN()
}

func (b *Board) SideToMove() domain.Color {
	if b.g.Position().Turn() == nchess.White {
		return domain.White
	}
	return domain.Black
}

func (b *Board) MovesUCI() []string {
	return append([]string(nil), b.moves...)
}

func (b *Board) MoveCount() int {
	return len(b.moves)
}

func (b *Board) ApplyUCI(move string) error {
	move = strings.ToLower(strings.TrimSpace(move))
	if move == "" {
		return domain.E(domain.KindIllegalMove, "empty move")
	}
	if err := b.g.PushNotationMove(move, nchess.UCINotation{}, nil); err != nil {
		return domain.Wrap(domain.KindIllegalMove, fmt.Errorf("move %q: %w", move, err))
	}
	b.moves = append(b.moves, move)
	return nil
}

func (b *Board) IsTerminal() bool {
	return b.g.Outcome() != nchess.NoOutcome
}

// Result reports the outcome as "white", "black", "draw" or "" for a
// game still in progress, plus the method string.
func (b *Board) Result() (string, string) {
	method := strings.ToLower(b.g.Method().String())
	switch b.g.Outcome() {
	case nchess.WhiteWon:
		return "white", method
	case nchess.BlackWon:
		return "black", method
	case nchess.Draw:
		return "draw", method
	default:
		return "", ""
	}
}

func (b *Board) LegalMoveCount() int {
	return len(b.g.ValidMoves())
}

// PGN renders the game in portable notation.
func (b *Board) PGN() string {
	return b.g.String()
}

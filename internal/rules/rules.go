// Package rules defines the move-legality oracle consumed by the game
// session. The engine behind the interface owns every rule of the game;
// the session never inspects a position beyond what Result exposes.
package rules

import (
	"errors"

	"github.com/castlelight/gambit/internal/models"
)

// Position is an opaque board encoding (FEN for chess engines). Sessions
// thread it through Apply without interpreting it.
type Position string

// StartingPosition is the initial board for a fresh game.
const StartingPosition Position = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Move is a candidate move in the engine's own notation (UCI for chess).
type Move string

// ErrIllegalMove is returned by engines when a move is not legal in the
// given position.
var ErrIllegalMove = errors.New("illegal move")

// Termination tags why a position is terminal.
type Termination string

const (
	TerminationCheckmate            Termination = "CHECKMATE"
	TerminationStalemate            Termination = "STALEMATE"
	TerminationInsufficientMaterial Termination = "INSUFFICIENT_MATERIAL"
	TerminationDrawRule             Termination = "DRAW_RULE"
)

// TerminalOutcome is reported by the engine when a move ends the game.
// Winner is nil for drawn terminations.
type TerminalOutcome struct {
	Termination Termination
	Winner      *models.Side
}

// Result is the engine's view of a position after a move was applied.
type Result struct {
	Position Position
	Turn     models.Side
	Outcome  *TerminalOutcome
}

// Engine validates moves and reports terminal outcomes. Implementations
// must be deterministic and side-effect free; the same position and move
// always produce the same result.
type Engine interface {
	LegalMoves(pos Position) ([]Move, error)
	Apply(pos Position, mv Move) (*Result, error)
}

package models

import (
	"github.com/google/uuid"
	"time"
)

// Side identifies one of the two fixed seats in a game. White moves first.
type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideWhite {
		return SideBlack
	}
	return SideWhite
}

// GameType defines the matchmaking pool a game was created from.
type GameType string

const (
	GameTypeCasual GameType = "casual"
	GameTypeRanked GameType = "ranked"
)

// GameStatus defines the lifecycle state of a game.
type GameStatus string

const (
	GameStatusWaiting   GameStatus = "WAITING"
	GameStatusActive    GameStatus = "ACTIVE"
	GameStatusCompleted GameStatus = "COMPLETED"
	GameStatusAborted   GameStatus = "ABORTED"
)

// Terminal reports whether the status permits no further mutation.
func (s GameStatus) Terminal() bool {
	return s == GameStatusCompleted || s == GameStatusAborted
}

// Outcome is the final result of a completed game.
type Outcome string

const (
	OutcomeWhiteWins Outcome = "WHITE_WINS"
	OutcomeBlackWins Outcome = "BLACK_WINS"
	OutcomeDraw      Outcome = "DRAW"
)

// OutcomeReason tags how a game reached its outcome.
type OutcomeReason string

const (
	ReasonCheckmate            OutcomeReason = "CHECKMATE"
	ReasonStalemate            OutcomeReason = "STALEMATE"
	ReasonInsufficientMaterial OutcomeReason = "INSUFFICIENT_MATERIAL"
	ReasonDrawRule             OutcomeReason = "DRAW_RULE"
	ReasonDrawAgreement        OutcomeReason = "DRAW_AGREEMENT"
	ReasonResignation          OutcomeReason = "RESIGNATION"
	ReasonDisconnect           OutcomeReason = "DISCONNECT"
	ReasonTimeout              OutcomeReason = "TIMEOUT"
	ReasonAborted              OutcomeReason = "ABORTED"
)

// GameMeta holds the player-supplied name and description for a game.
type GameMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// GameResult is the recorded outcome of a terminal game, shaped for the
// downstream stats write.
type GameResult struct {
	GameID   uuid.UUID     `json:"game_id"`
	Outcome  Outcome       `json:"outcome"`
	Reason   OutcomeReason `json:"reason"`
	WinnerID *uuid.UUID    `json:"winner_id,omitempty"`
	LoserID  *uuid.UUID    `json:"loser_id,omitempty"`
	DrawIDs  []uuid.UUID   `json:"draw_ids,omitempty"`
	EndedAt  time.Time     `json:"ended_at"`
}

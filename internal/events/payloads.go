package events

import (
	"time"
)

// StateUpdatePayload is broadcast after every accepted move and on join.
// Clients render the position and clocks from this alone; there is no
// replay, so a reconnecting client re-fetches the snapshot instead.
type StateUpdatePayload struct {
	Position         string `json:"position"`
	Turn             string `json:"turn"`
	IsOver           bool   `json:"is_over"`
	Outcome          string `json:"outcome,omitempty"`
	WhiteRemainingMs int64  `json:"white_time_remaining_ms"`
	BlackRemainingMs int64  `json:"black_time_remaining_ms"`
	RunningSide      string `json:"running_side,omitempty"`
}

// GameOverPayload is broadcast exactly once, when a game reaches a
// terminal status.
type GameOverPayload struct {
	Outcome string    `json:"outcome"`
	Reason  string    `json:"reason"`
	Winner  string    `json:"winner,omitempty"`
	EndedAt time.Time `json:"ended_at"`
}

// DrawOfferedPayload is broadcast when a player offers a draw.
type DrawOfferedPayload struct {
	OfferedBy string `json:"offered_by"`
}

// DrawDeclinedPayload is broadcast when a pending draw offer is declined.
type DrawDeclinedPayload struct {
	DeclinedBy string `json:"declined_by"`
}

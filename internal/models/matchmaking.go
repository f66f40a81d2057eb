package models

import (
	"github.com/google/uuid"
	"time"
)

// QueueEntry is one player's pending matchmaking request in a pool.
// A player holds at most one entry per pool.
type QueueEntry struct {
	UserID     uuid.UUID `json:"user_id"`
	Username   string    `json:"username"`
	Rating     int       `json:"rating"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Meta       GameMeta  `json:"meta"`
}

// MatchNotification is the single-slot "match found" payload handed to a
// player through the mailbox. A later deposit for the same player replaces
// an unconsumed one.
type MatchNotification struct {
	GameID   uuid.UUID `json:"game_uuid"`
	Opponent string    `json:"opponent,omitempty"`
	Side     Side      `json:"color"`
	Meta     GameMeta  `json:"meta"`
}

// Package matchmaking collects pairing requests per pool and forms games.
// Enqueue-and-pair runs as one critical section so two concurrent enqueues
// can never double-pair the same entries.
package matchmaking

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/castlelight/gambit/internal/game"
	"github.com/castlelight/gambit/internal/models"
)

// RatingWindow is the widest rating gap the ranked pool will pair across.
const RatingWindow = 200

var (
	// ErrAlreadyQueued is returned when a player enqueues into a pool
	// they already hold an entry in.
	ErrAlreadyQueued = errors.New("already in matchmaking queue")

	// ErrPairingConflict means pairing popped the same participant
	// twice. The queue's critical section makes this unreachable; it
	// exists so a broken invariant fails loudly instead of creating a
	// self-game.
	ErrPairingConflict = errors.New("pairing produced a conflict")
)

// GameCreator is the slice of the registry the queue needs.
type GameCreator interface {
	Create(req game.CreateGameRequest) *game.Session
}

// Notifier hands a match-found notification to a participant.
type Notifier interface {
	Deposit(userID uuid.UUID, n models.MatchNotification)
}

// MatchResult is returned to the caller of Enqueue when their entry was
// paired in the same call.
type MatchResult struct {
	GameID   uuid.UUID       `json:"game_uuid"`
	Opponent string          `json:"opponent"`
	Side     models.Side     `json:"color"`
	Meta     models.GameMeta `json:"meta"`
}

// QueueStatus reports a player's place in a pool.
type QueueStatus struct {
	InQueue  bool `json:"in_queue"`
	Position int  `json:"queue_position,omitempty"`
	Total    int  `json:"total_players,omitempty"`
}

// Queue holds the per-pool waiting lists. One mutex guards every pool so
// check, mutate, and pair are indivisible.
type Queue struct {
	mu      sync.Mutex
	pools   map[models.GameType][]models.QueueEntry
	games   GameCreator
	mailbox Notifier
	clk     clockwork.Clock
}

// NewQueue creates an empty queue pairing into games.
func NewQueue(games GameCreator, mailbox Notifier, clk clockwork.Clock) *Queue {
	return &Queue{
		pools:   make(map[models.GameType][]models.QueueEntry),
		games:   games,
		mailbox: mailbox,
		clk:     clk,
	}
}

// Enqueue appends entry to the pool and immediately attempts pairing.
// When pairing matched the caller, the result is returned and the caller
// no longer appears in the queue.
func (q *Queue) Enqueue(gameType models.GameType, entry models.QueueEntry) (*MatchResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.pools[gameType] {
		if e.UserID == entry.UserID {
			return nil, ErrAlreadyQueued
		}
	}

	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = q.clk.Now().UTC()
	}
	q.pools[gameType] = append(q.pools[gameType], entry)

	log.Info().
		Str("user_id", entry.UserID.String()).
		Str("game_type", string(gameType)).
		Int("queue_len", len(q.pools[gameType])).
		Msg("player enqueued")

	return q.pairLocked(gameType, entry.UserID)
}

// Cancel removes the player's entry from the pool. Idempotent; cancelling
// after pairing already produced a game has no effect on the game.
func (q *Queue) Cancel(gameType models.GameType, userID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pool := q.pools[gameType]
	for i, e := range pool {
		if e.UserID == userID {
			q.pools[gameType] = append(pool[:i], pool[i+1:]...)
			log.Info().
				Str("user_id", userID.String()).
				Str("game_type", string(gameType)).
				Msg("player left queue")
			return
		}
	}
}

// Status reports whether the player is queued and their 1-indexed position
// by insertion order.
func (q *Queue) Status(gameType models.GameType, userID uuid.UUID) QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	pool := q.pools[gameType]
	for i, e := range pool {
		if e.UserID == userID {
			return QueueStatus{InQueue: true, Position: i + 1, Total: len(pool)}
		}
	}
	return QueueStatus{}
}

// pairLocked applies the pool's pairing rule. Ranked pairs the two lowest
// ratings when they are within RatingWindow; every other pool pairs the
// two oldest entries unconditionally.
func (q *Queue) pairLocked(gameType models.GameType, caller uuid.UUID) (*MatchResult, error) {
	pool := q.pools[gameType]
	if len(pool) < 2 {
		return nil, nil
	}

	var first, second models.QueueEntry
	if gameType == models.GameTypeRanked {
		sorted := make([]models.QueueEntry, len(pool))
		copy(sorted, pool)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Rating < sorted[j].Rating
		})
		first, second = sorted[0], sorted[1]
		if second.Rating-first.Rating > RatingWindow {
			return nil, nil
		}
	} else {
		first, second = pool[0], pool[1]
	}

	if first.UserID == second.UserID {
		return nil, ErrPairingConflict
	}

	q.removeLocked(gameType, first.UserID)
	q.removeLocked(gameType, second.UserID)

	// The earlier arrival (or lower rating) takes white. The game name
	// and description come from white's request, as in the lobby flow.
	blackID := second.UserID
	session := q.games.Create(game.CreateGameRequest{
		White:     first.UserID,
		WhiteName: first.Username,
		Black:     &blackID,
		BlackName: second.Username,
		GameType:  gameType,
		Meta:      first.Meta,
	})

	q.mailbox.Deposit(first.UserID, models.MatchNotification{
		GameID:   session.ID,
		Opponent: second.Username,
		Side:     models.SideWhite,
		Meta:     session.Meta,
	})
	q.mailbox.Deposit(second.UserID, models.MatchNotification{
		GameID:   session.ID,
		Opponent: first.Username,
		Side:     models.SideBlack,
		Meta:     session.Meta,
	})

	log.Info().
		Str("game_id", session.ID.String()).
		Str("white", first.Username).
		Str("black", second.Username).
		Str("game_type", string(gameType)).
		Msg("match formed")

	switch caller {
	case first.UserID:
		return &MatchResult{GameID: session.ID, Opponent: second.Username, Side: models.SideWhite, Meta: session.Meta}, nil
	case second.UserID:
		return &MatchResult{GameID: session.ID, Opponent: first.Username, Side: models.SideBlack, Meta: session.Meta}, nil
	}
	return nil, nil
}

func (q *Queue) removeLocked(gameType models.GameType, userID uuid.UUID) {
	pool := q.pools[gameType]
	for i, e := range pool {
		if e.UserID == userID {
			q.pools[gameType] = append(pool[:i], pool[i+1:]...)
			return
		}
	}
}

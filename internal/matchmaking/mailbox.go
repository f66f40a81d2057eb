package matchmaking

import (
	"sync"

	"github.com/google/uuid"

	"github.com/castlelight/gambit/internal/models"
)

// Mailbox is the per-player single-slot store for an asynchronous match
// notification, polled by players who are not yet connected to a room.
//
// A deposit overwrites any unconsumed notification for the same player;
// delivery is at-most-one pending, not queued. A player who is paired
// twice before polling only learns about the second game.
type Mailbox struct {
	mu      sync.Mutex
	pending map[uuid.UUID]models.MatchNotification
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{pending: make(map[uuid.UUID]models.MatchNotification)}
}

// Deposit stores n for userID, replacing any pending notification.
func (m *Mailbox) Deposit(userID uuid.UUID, n models.MatchNotification) {
	m.mu.Lock()
	m.pending[userID] = n
	m.mu.Unlock()
}

// Consume atomically removes and returns the pending notification.
func (m *Mailbox) Consume(userID uuid.UUID) (models.MatchNotification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.pending[userID]
	if ok {
		delete(m.pending, userID)
	}
	return n, ok
}

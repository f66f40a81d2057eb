package game

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/castlelight/gambit/internal/events"
	"github.com/castlelight/gambit/internal/game/clock"
	"github.com/castlelight/gambit/internal/models"
	"github.com/castlelight/gambit/internal/rules"
)

// Registry is the single source of truth for live games. Sessions it
// creates share the injected oracle, event sink, recorder, and clock.
type Registry struct {
	mu    sync.RWMutex
	games map[uuid.UUID]*Session

	engine      rules.Engine
	sink        events.Sink
	recorder    Recorder
	initialTime time.Duration
	clk         clockwork.Clock
}

// NewRegistry creates an empty registry. initialTime is the per-side clock
// budget for every game it creates.
func NewRegistry(engine rules.Engine, sink events.Sink, recorder Recorder, initialTime time.Duration, clk clockwork.Clock) *Registry {
	return &Registry{
		games:       make(map[uuid.UUID]*Session),
		engine:      engine,
		sink:        sink,
		recorder:    recorder,
		initialTime: initialTime,
		clk:         clk,
	}
}

// CreateGameRequest describes a new game. Black is nil for the
// create-then-join lobby flow; when set the game starts active with
// white's clock running.
type CreateGameRequest struct {
	White     uuid.UUID
	WhiteName string
	Black     *uuid.UUID
	BlackName string
	GameType  models.GameType
	Meta      models.GameMeta
}

// Create allocates a session with a fresh identifier and registers it.
func (r *Registry) Create(req CreateGameRequest) *Session {
	s := &Session{
		ID:        uuid.New(),
		GameType:  req.GameType,
		Meta:      req.Meta,
		CreatedAt: r.clk.Now().UTC(),
		whiteID:   req.White,
		whiteName: req.WhiteName,
		position:  rules.StartingPosition,
		turn:      models.SideWhite,
		status:    models.GameStatusWaiting,
		clock:     clock.New(r.initialTime, r.clk),
		engine:    r.engine,
		sink:      r.sink,
		recorder:  r.recorder,
		clk:       r.clk,
	}
	if req.Black != nil {
		s.blackID = *req.Black
		s.blackName = req.BlackName
		s.status = models.GameStatusActive
		s.clock.Start(models.SideWhite)
	}

	r.mu.Lock()
	r.games[s.ID] = s
	r.mu.Unlock()

	log.Info().
		Str("game_id", s.ID.String()).
		Str("game_type", string(req.GameType)).
		Str("status", string(s.Status())).
		Msg("created game")

	return s
}

// Get returns the live session for id.
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	s, ok := r.games[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// Remove detaches a session. Callers remove games only after they reach a
// terminal status.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.games, id)
	r.mu.Unlock()
}

// Active returns every session currently in ACTIVE status.
func (r *Registry) Active() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*Session
	for _, s := range r.games {
		if s.Status() == models.GameStatusActive {
			active = append(active, s)
		}
	}
	return active
}

// WaitingGames returns lobby games still open for an opponent, oldest
// first.
func (r *Registry) WaitingGames() []Snapshot {
	r.mu.RLock()
	var waiting []Snapshot
	for _, s := range r.games {
		if snap := s.Snapshot(); snap.Status == models.GameStatusWaiting {
			waiting = append(waiting, snap)
		}
	}
	r.mu.RUnlock()

	sort.Slice(waiting, func(i, j int) bool {
		return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
	})
	return waiting
}

// ActiveFor returns the waiting or active session playerID is part of, if
// any. The create flow uses it to enforce one live game per player.
func (r *Registry) ActiveFor(playerID uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.games {
		if !s.HasPlayer(playerID) {
			continue
		}
		if st := s.Status(); st == models.GameStatusWaiting || st == models.GameStatusActive {
			return s, true
		}
	}
	return nil, false
}

// Package events defines the wire contract for game events and the Sink
// through which sessions publish them. Payload structs are shared between
// the game core and the gateway so both ends agree on field names.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of game event.
type EventType string

const (
	EventTypeStateUpdate  EventType = "state_update"
	EventTypeGameOver     EventType = "game_over"
	EventTypeDrawOffered  EventType = "draw_offered"
	EventTypeDrawDeclined EventType = "draw_declined"
)

// GameEvent is the envelope delivered to every subscriber of a game's room.
type GameEvent struct {
	ID        string          `json:"id"`
	GameID    uuid.UUID       `json:"game_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewGameEvent wraps payload in an envelope with a fresh event ID.
func NewGameEvent(gameID uuid.UUID, eventType EventType, payload any) (*GameEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &GameEvent{
		ID:        uuid.New().String(),
		GameID:    gameID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// Sink receives events emitted by a session. Implementations fan the event
// out to the game's room, either in-process or through a message bus.
// Publish must not block the caller on slow consumers.
type Sink interface {
	Publish(event *GameEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event *GameEvent)

func (f SinkFunc) Publish(event *GameEvent) { f(event) }

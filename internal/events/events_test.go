package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameEvent(t *testing.T) {
	gameID := uuid.New()
	ev, err := NewGameEvent(gameID, EventTypeDrawOffered, DrawOfferedPayload{OfferedBy: "white"})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, gameID, ev.GameID)
	assert.Equal(t, EventTypeDrawOffered, ev.Type)
	assert.False(t, ev.Timestamp.IsZero())

	var payload DrawOfferedPayload
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, "white", payload.OfferedBy)
}

func TestNewGameEventRejectsUnmarshalablePayload(t *testing.T) {
	_, err := NewGameEvent(uuid.New(), EventTypeStateUpdate, make(chan int))
	assert.Error(t, err)
}

func TestSinkFunc(t *testing.T) {
	var got *GameEvent
	sink := SinkFunc(func(ev *GameEvent) { got = ev })

	ev, err := NewGameEvent(uuid.New(), EventTypeGameOver, GameOverPayload{Outcome: "DRAW"})
	require.NoError(t, err)
	sink.Publish(ev)
	assert.Same(t, ev, got)
}

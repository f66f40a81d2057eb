package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlelight/gambit/internal/models"
)

func TestSweepFlagsExpiredGames(t *testing.T) {
	f := newFixture(t)
	f.newRegistry()

	expired := f.activeGame(t)
	sw := NewSweeper(f.registry, time.Second, f.clk)

	assert.Zero(t, sw.Sweep(context.Background()))

	f.clk.Advance(10*time.Minute + time.Second)
	fresh := f.registry.Create(CreateGameRequest{
		White:     f.white,
		WhiteName: "alice2",
		Black:     ptr(f.black),
		BlackName: "bob2",
		GameType:  models.GameTypeCasual,
	})

	assert.Equal(t, 1, sw.Sweep(context.Background()))
	assert.Equal(t, models.GameStatusCompleted, expired.Status())
	assert.Equal(t, models.GameStatusActive, fresh.Status())

	snap := expired.Snapshot()
	require.NotNil(t, snap.Result)
	assert.Equal(t, models.ReasonTimeout, snap.Result.Reason)
	assert.Equal(t, models.OutcomeBlackWins, snap.Result.Outcome)

	// Nothing left to flag.
	assert.Zero(t, sw.Sweep(context.Background()))
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.newRegistry()
	sw := NewSweeper(f.registry, time.Second, f.clk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}

func TestWakeTriggersImmediateSweep(t *testing.T) {
	f := newFixture(t)
	f.newRegistry()

	s := f.activeGame(t)
	f.clk.Advance(10*time.Minute + time.Second)

	sw := NewSweeper(f.registry, time.Hour, f.clk)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sw.Run(ctx)

	sw.Wake()
	require.Eventually(t, func() bool {
		return s.Status() == models.GameStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlelight/gambit/internal/events"
	"github.com/castlelight/gambit/internal/models"
	"github.com/castlelight/gambit/internal/rules"
	"github.com/castlelight/gambit/internal/stats"
)

type scriptEngine struct {
	applyFn func(pos rules.Position, mv rules.Move) (*rules.Result, error)
	legalFn func(pos rules.Position) ([]rules.Move, error)
	calls   int
}

func (e *scriptEngine) LegalMoves(pos rules.Position) ([]rules.Move, error) {
	if e.legalFn == nil {
		return nil, nil
	}
	return e.legalFn(pos)
}

func (e *scriptEngine) Apply(pos rules.Position, mv rules.Move) (*rules.Result, error) {
	e.calls++
	return e.applyFn(pos, mv)
}

type captureSink struct {
	mu     sync.Mutex
	events []*events.GameEvent
}

func (c *captureSink) Publish(ev *events.GameEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureSink) ofType(t events.EventType) []*events.GameEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*events.GameEvent
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// acceptAnyMove accepts every move, appending it to the position so tests
// can observe that the engine's result was taken verbatim.
func acceptAnyMove(pos rules.Position, mv rules.Move) (*rules.Result, error) {
	return &rules.Result{Position: pos + " " + rules.Position(mv), Turn: models.SideBlack}, nil
}

type fixture struct {
	registry *Registry
	engine   *scriptEngine
	sink     *captureSink
	recorder *stats.MemoryRecorder
	clk      *clockwork.FakeClock

	white uuid.UUID
	black uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		engine:   &scriptEngine{applyFn: acceptAnyMove},
		sink:     &captureSink{},
		recorder: stats.NewMemoryRecorder(),
		clk:      clockwork.NewFakeClock(),
		white:    uuid.New(),
		black:    uuid.New(),
	}
}

func (f *fixture) newRegistry() *Registry {
	f.registry = NewRegistry(f.engine, f.sink, f.recorder, 10*time.Minute, f.clk)
	return f.registry
}

// activeGame creates a game with both seats filled and white to move.
func (f *fixture) activeGame(t *testing.T) *Session {
	t.Helper()
	if f.registry == nil {
		f.newRegistry()
	}
	black := f.black
	return f.registry.Create(CreateGameRequest{
		White:     f.white,
		WhiteName: "alice",
		Black:     &black,
		BlackName: "bob",
		GameType:  models.GameTypeCasual,
		Meta:      models.GameMeta{Name: "test game"},
	})
}

func (f *fixture) waitingGame(t *testing.T) *Session {
	t.Helper()
	if f.registry == nil {
		f.newRegistry()
	}
	return f.registry.Create(CreateGameRequest{
		White:     f.white,
		WhiteName: "alice",
		GameType:  models.GameTypeCasual,
		Meta:      models.GameMeta{Name: "lobby game"},
	})
}

func TestJoinActivatesGameAndStartsWhiteClock(t *testing.T) {
	f := newFixture(t)
	s := f.waitingGame(t)
	ctx := context.Background()

	require.Equal(t, models.GameStatusWaiting, s.Status())

	require.NoError(t, s.Join(ctx, f.black, "bob"))
	assert.Equal(t, models.GameStatusActive, s.Status())

	snap := s.Snapshot()
	assert.Equal(t, "bob", snap.BlackName)
	assert.Equal(t, models.SideWhite, snap.RunningSide)
	assert.True(t, s.HasPlayer(f.black))
}

func TestJoinOwnGame(t *testing.T) {
	f := newFixture(t)
	s := f.waitingGame(t)

	err := s.Join(context.Background(), f.white, "alice")
	assert.ErrorIs(t, err, ErrOwnGame)
	assert.Equal(t, models.GameStatusWaiting, s.Status())
}

func TestJoinFullGame(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)

	err := s.Join(context.Background(), uuid.New(), "carol")
	assert.ErrorIs(t, err, ErrAlreadyFull)
}

func TestMoveOutOfTurnLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)
	before := s.Snapshot()

	err := s.ApplyMove(context.Background(), f.black, "e7e5")
	assert.ErrorIs(t, err, ErrOutOfTurn)

	after := s.Snapshot()
	assert.Equal(t, before.Position, after.Position)
	assert.Equal(t, before.Turn, after.Turn)
	assert.Zero(t, f.engine.calls, "oracle must not see an out-of-turn move")
}

func TestMoveByOutsider(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)

	err := s.ApplyMove(context.Background(), uuid.New(), "e2e4")
	assert.ErrorIs(t, err, ErrNotInGame)
}

func TestMoveBeforeOpponentJoins(t *testing.T) {
	f := newFixture(t)
	s := f.waitingGame(t)

	err := s.ApplyMove(context.Background(), f.white, "e2e4")
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestIllegalMoveLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.engine.applyFn = func(pos rules.Position, mv rules.Move) (*rules.Result, error) {
		return nil, rules.ErrIllegalMove
	}
	s := f.activeGame(t)
	before := s.Snapshot()

	f.clk.Advance(3 * time.Second)
	err := s.ApplyMove(context.Background(), f.white, "e2e5")
	assert.ErrorIs(t, err, ErrIllegalMove)

	after := s.Snapshot()
	assert.Equal(t, before.Position, after.Position)
	assert.Equal(t, before.Turn, after.Turn)
	assert.Equal(t, before.WhiteRemaining, after.WhiteRemaining, "rejected move must not debit the clock")
}

func TestMoveDebitsCallerAndFlipsTurn(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)
	ctx := context.Background()

	f.clk.Advance(5 * time.Second)
	require.NoError(t, s.ApplyMove(ctx, f.white, "e2e4"))

	snap := s.Snapshot()
	assert.Equal(t, models.SideBlack, snap.Turn)
	assert.Equal(t, models.SideBlack, snap.RunningSide)
	assert.Equal(t, 10*time.Minute-5*time.Second, snap.WhiteRemaining)
	assert.Equal(t, 10*time.Minute, snap.BlackRemaining)

	updates := f.sink.ofType(events.EventTypeStateUpdate)
	require.NotEmpty(t, updates)
}

func TestMoveClearsPendingDrawOffer(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)
	ctx := context.Background()

	require.NoError(t, s.OfferDraw(ctx, f.black))
	require.NoError(t, s.ApplyMove(ctx, f.white, "e2e4"))

	_, err := s.AcceptDraw(ctx, f.white)
	assert.ErrorIs(t, err, ErrNoDrawOffer)
}

func TestCheckmateCompletesGame(t *testing.T) {
	f := newFixture(t)
	winner := models.SideWhite
	f.engine.applyFn = func(pos rules.Position, mv rules.Move) (*rules.Result, error) {
		return &rules.Result{
			Position: pos + rules.Position(mv),
			Turn:     models.SideBlack,
			Outcome:  &rules.TerminalOutcome{Termination: rules.TerminationCheckmate, Winner: &winner},
		}, nil
	}
	s := f.activeGame(t)

	require.NoError(t, s.ApplyMove(context.Background(), f.white, "d8h4"))

	assert.Equal(t, models.GameStatusCompleted, s.Status())
	snap := s.Snapshot()
	require.NotNil(t, snap.Result)
	assert.Equal(t, models.OutcomeWhiteWins, snap.Result.Outcome)
	assert.Equal(t, models.ReasonCheckmate, snap.Result.Reason)
	require.NotNil(t, snap.Result.WinnerID)
	assert.Equal(t, f.white, *snap.Result.WinnerID)
	require.NotNil(t, snap.Result.LoserID)
	assert.Equal(t, f.black, *snap.Result.LoserID)

	assert.Len(t, f.sink.ofType(events.EventTypeGameOver), 1)
	assert.Len(t, f.recorder.Results(), 1)
}

func TestMoveAfterGameOver(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)
	ctx := context.Background()

	_, err := s.Resign(ctx, f.white)
	require.NoError(t, err)

	err = s.ApplyMove(ctx, f.white, "e2e4")
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestResignAwardsOpponent(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)

	result, err := s.Resign(context.Background(), f.black)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.OutcomeWhiteWins, result.Outcome)
	assert.Equal(t, models.ReasonResignation, result.Reason)
	assert.Equal(t, models.GameStatusCompleted, s.Status())
}

func TestResignIsIdempotent(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)
	ctx := context.Background()

	first, err := s.Resign(ctx, f.black)
	require.NoError(t, err)

	// Repeats and the opponent's late resign return the recorded result
	// without finishing the game a second time.
	again, err := s.Resign(ctx, f.black)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	late, err := s.Resign(ctx, f.white)
	require.NoError(t, err)
	assert.Equal(t, first, late)

	assert.Len(t, f.recorder.Results(), 1)
	assert.Len(t, f.sink.ofType(events.EventTypeGameOver), 1)
}

func TestResignByOutsider(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)

	_, err := s.Resign(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotInGame)
}

func TestResignWaitingGameAborts(t *testing.T) {
	f := newFixture(t)
	s := f.waitingGame(t)

	result, err := s.Resign(context.Background(), f.white)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.GameStatusAborted, s.Status())
	assert.Equal(t, models.ReasonAborted, result.Reason)
	assert.Empty(t, result.Outcome)
	assert.Nil(t, result.WinnerID)
}

func TestDisconnectForfeits(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)

	result, err := s.HandleDisconnect(context.Background(), f.white)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeBlackWins, result.Outcome)
	assert.Equal(t, models.ReasonDisconnect, result.Reason)
}

func TestDrawAgreement(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)
	ctx := context.Background()

	require.NoError(t, s.OfferDraw(ctx, f.white))
	assert.Len(t, f.sink.ofType(events.EventTypeDrawOffered), 1)

	result, err := s.AcceptDraw(ctx, f.black)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDraw, result.Outcome)
	assert.Equal(t, models.ReasonDrawAgreement, result.Reason)
	assert.ElementsMatch(t, []uuid.UUID{f.white, f.black}, result.DrawIDs)
	assert.Equal(t, models.GameStatusCompleted, s.Status())
}

func TestAcceptDrawWithoutOffer(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)

	_, err := s.AcceptDraw(context.Background(), f.black)
	assert.ErrorIs(t, err, ErrNoDrawOffer)
}

func TestAcceptOwnDrawOffer(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)
	ctx := context.Background()

	require.NoError(t, s.OfferDraw(ctx, f.white))
	_, err := s.AcceptDraw(ctx, f.white)
	assert.ErrorIs(t, err, ErrNoDrawOffer)
}

func TestDeclineDrawClearsOffer(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)
	ctx := context.Background()

	require.NoError(t, s.OfferDraw(ctx, f.white))
	require.NoError(t, s.DeclineDraw(ctx, f.black))
	assert.Len(t, f.sink.ofType(events.EventTypeDrawDeclined), 1)

	_, err := s.AcceptDraw(ctx, f.black)
	assert.ErrorIs(t, err, ErrNoDrawOffer)
	assert.Equal(t, models.GameStatusActive, s.Status())
}

func TestFlagIfExpired(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)
	ctx := context.Background()

	result, flagged := s.FlagIfExpired(ctx)
	assert.False(t, flagged)
	assert.Nil(t, result)

	f.clk.Advance(10*time.Minute + time.Second)
	result, flagged = s.FlagIfExpired(ctx)
	require.True(t, flagged)
	require.NotNil(t, result)
	assert.Equal(t, models.OutcomeBlackWins, result.Outcome)
	assert.Equal(t, models.ReasonTimeout, result.Reason)
	assert.Equal(t, models.GameStatusCompleted, s.Status())

	// A second sweep sees a terminal game and does nothing.
	_, flagged = s.FlagIfExpired(ctx)
	assert.False(t, flagged)
	assert.Len(t, f.recorder.Results(), 1)
}

func TestLegalMovesQueriesCurrentPosition(t *testing.T) {
	f := newFixture(t)
	var asked rules.Position
	f.engine.legalFn = func(pos rules.Position) ([]rules.Move, error) {
		asked = pos
		return []rules.Move{"e7e5"}, nil
	}
	s := f.activeGame(t)

	require.NoError(t, s.ApplyMove(context.Background(), f.white, "e2e4"))

	moves, err := s.LegalMoves()
	require.NoError(t, err)
	assert.Equal(t, []rules.Move{"e7e5"}, moves)
	assert.Equal(t, s.Snapshot().Position, asked)
}

func TestAbortWaitingGame(t *testing.T) {
	f := newFixture(t)
	s := f.waitingGame(t)

	result, err := s.Abort(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusAborted, s.Status())
	assert.Equal(t, models.ReasonAborted, result.Reason)

	// Idempotent once terminal.
	again, err := s.Abort(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result, again)
}

func TestAbortActiveGameRejected(t *testing.T) {
	f := newFixture(t)
	s := f.activeGame(t)

	_, err := s.Abort(context.Background())
	assert.Error(t, err)
	assert.Equal(t, models.GameStatusActive, s.Status())
}

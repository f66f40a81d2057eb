// Package game holds the authoritative state of live games: the per-game
// session state machine, the process-wide registry, and the clock sweep
// that flags players who run out of time between moves.
package game

import (
	"context"
	"fmt"
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

// Recorder receives the result of every terminal game exactly once. The
// in-memory transition is finalized before the recorder runs; a failed
// write is logged and never rolled back into the game state.
type Recorder interface {
	RecordResult(ctx context.Context, result models.GameResult) error
}

// Session is one two-player game. All mutation goes through its methods,
// which serialize on a per-session mutex; one session's lock never blocks
// another game.
type Session struct {
	ID        uuid.UUID
	GameType  models.GameType
	Meta      models.GameMeta
	CreatedAt time.Time

	mu          sync.Mutex
	whiteID     uuid.UUID
	whiteName   string
	blackID     uuid.UUID
	blackName   string
	position    rules.Position
	turn        models.Side
	status      models.GameStatus
	result      *models.GameResult
	drawOfferBy models.Side
	clock       *clock.Clock
	engine      rules.Engine
	sink        events.Sink
	recorder    Recorder
	clk         clockwork.Clock
}

// Snapshot is a consistent read of a session's state. Reconnecting clients
// fetch it instead of replaying events.
type Snapshot struct {
	ID             uuid.UUID          `json:"game_uuid"`
	GameType       models.GameType    `json:"game_type"`
	Meta           models.GameMeta    `json:"meta"`
	Status         models.GameStatus  `json:"status"`
	Position       rules.Position     `json:"position"`
	Turn           models.Side        `json:"turn"`
	WhiteID        uuid.UUID          `json:"white_player_id"`
	WhiteName      string             `json:"white_player"`
	BlackID        uuid.UUID          `json:"black_player_id,omitempty"`
	BlackName      string             `json:"black_player,omitempty"`
	WhiteRemaining time.Duration      `json:"white_time_remaining"`
	BlackRemaining time.Duration      `json:"black_time_remaining"`
	RunningSide    models.Side        `json:"running_side,omitempty"`
	Result         *models.GameResult `json:"result,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Status returns the current lifecycle status.
func (s *Session) Status() models.GameStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// HasPlayer reports whether playerID is bound to either side.
func (s *Session) HasPlayer(playerID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sideOf(playerID)
	return ok
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:             s.ID,
		GameType:       s.GameType,
		Meta:           s.Meta,
		Status:         s.status,
		Position:       s.position,
		Turn:           s.turn,
		WhiteID:        s.whiteID,
		WhiteName:      s.whiteName,
		BlackID:        s.blackID,
		BlackName:      s.blackName,
		WhiteRemaining: s.clock.Remaining(models.SideWhite),
		BlackRemaining: s.clock.Remaining(models.SideBlack),
		Result:         s.result,
		CreatedAt:      s.CreatedAt,
	}
	if s.status == models.GameStatusActive {
		snap.RunningSide = s.clock.Running()
	}
	return snap
}

// LegalMoves asks the oracle for the legal moves in the current position.
// The oracle call runs outside the session lock; a move applied meanwhile
// makes the answer stale, which clients already tolerate.
func (s *Session) LegalMoves() ([]rules.Move, error) {
	s.mu.Lock()
	pos := s.position
	s.mu.Unlock()

	moves, err := s.engine.LegalMoves(pos)
	if err != nil {
		return nil, fmt.Errorf("query legal moves: %w", err)
	}
	return moves, nil
}

// Join binds the second player, starts white's clock, and activates the
// game. Valid only while the game is waiting for an opponent.
func (s *Session) Join(ctx context.Context, playerID uuid.UUID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.GameStatusWaiting {
		return ErrAlreadyFull
	}
	if playerID == s.whiteID {
		return ErrOwnGame
	}

	s.blackID = playerID
	s.blackName = username
	s.status = models.GameStatusActive
	s.clock.Start(models.SideWhite)

	log.Info().
		Str("game_id", s.ID.String()).
		Str("user_id", playerID.String()).
		Msg("player joined game")

	s.publishStateLocked()
	return nil
}

// ApplyMove validates mv against the oracle and, if accepted, updates the
// position, debits the mover's clock, flips the turn, and broadcasts the
// new state. A terminal oracle outcome completes the game.
func (s *Session) ApplyMove(ctx context.Context, playerID uuid.UUID, mv rules.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return ErrGameOver
	}
	if s.status == models.GameStatusWaiting {
		return ErrNotStarted
	}
	side, ok := s.sideOf(playerID)
	if !ok {
		return ErrNotInGame
	}
	if side != s.turn {
		return ErrOutOfTurn
	}

	res, err := s.engine.Apply(s.position, mv)
	if err != nil {
		// Oracle rejections and oracle failures alike surface as an
		// illegal move with the diagnostic preserved.
		return fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	s.position = res.Position
	s.turn = res.Turn
	s.drawOfferBy = ""
	s.clock.Tick(side)
	s.clock.Start(side.Opponent())

	if res.Outcome != nil {
		s.completeLocked(outcomeForWinner(res.Outcome.Winner), reasonForTermination(res.Outcome.Termination), res.Outcome.Winner)
		s.publishStateLocked()
		s.publishGameOverLocked()
		s.recordLocked(ctx)
		return nil
	}

	s.publishStateLocked()
	return nil
}

// Resign ends the game in the opponent's favor. Calling it on a terminal
// game is a no-op that returns the recorded result. Resigning a game still
// waiting for an opponent aborts it instead.
func (s *Session) Resign(ctx context.Context, playerID uuid.UUID) (*models.GameResult, error) {
	return s.concede(ctx, playerID, models.ReasonResignation)
}

// HandleDisconnect treats a dropped connection like a resignation with its
// own reason tag. Idempotent once terminal.
func (s *Session) HandleDisconnect(ctx context.Context, playerID uuid.UUID) (*models.GameResult, error) {
	return s.concede(ctx, playerID, models.ReasonDisconnect)
}

func (s *Session) concede(ctx context.Context, playerID uuid.UUID, reason models.OutcomeReason) (*models.GameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	side, ok := s.sideOf(playerID)
	if !ok {
		return nil, ErrNotInGame
	}
	if s.status.Terminal() {
		return s.result, nil
	}
	if s.status == models.GameStatusWaiting {
		s.abortLocked(ctx)
		return s.result, nil
	}

	winner := side.Opponent()
	s.finishLocked(ctx, outcomeForWinner(&winner), reason, &winner)
	return s.result, nil
}

// OfferDraw records a live offer from the acting player and notifies the
// room. It does not block further moves; an accepted move clears it.
func (s *Session) OfferDraw(ctx context.Context, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	side, ok := s.sideOf(playerID)
	if !ok {
		return ErrNotInGame
	}
	if s.status.Terminal() {
		return ErrGameOver
	}
	if s.status == models.GameStatusWaiting {
		return ErrNotStarted
	}

	s.drawOfferBy = side
	s.publishLocked(events.EventTypeDrawOffered, events.DrawOfferedPayload{OfferedBy: string(side)})
	return nil
}

// AcceptDraw ends the game as a draw by agreement. It requires a live
// offer from the opponent of the accepting player.
func (s *Session) AcceptDraw(ctx context.Context, playerID uuid.UUID) (*models.GameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	side, ok := s.sideOf(playerID)
	if !ok {
		return nil, ErrNotInGame
	}
	if s.status.Terminal() {
		return nil, ErrGameOver
	}
	if s.drawOfferBy == "" || s.drawOfferBy == side {
		return nil, ErrNoDrawOffer
	}

	s.finishLocked(ctx, models.OutcomeDraw, models.ReasonDrawAgreement, nil)
	return s.result, nil
}

// DeclineDraw clears the opponent's live offer and notifies the room.
func (s *Session) DeclineDraw(ctx context.Context, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	side, ok := s.sideOf(playerID)
	if !ok {
		return ErrNotInGame
	}
	if s.status.Terminal() {
		return ErrGameOver
	}
	if s.drawOfferBy == "" || s.drawOfferBy == side {
		return ErrNoDrawOffer
	}

	s.drawOfferBy = ""
	s.publishLocked(events.EventTypeDrawDeclined, events.DrawDeclinedPayload{DeclinedBy: string(side)})
	return nil
}

// Abort cancels a game that never became active. Idempotent once terminal.
func (s *Session) Abort(ctx context.Context) (*models.GameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return s.result, nil
	}
	if s.status != models.GameStatusWaiting {
		return nil, fmt.Errorf("cannot abort a game in status %s", s.status)
	}

	s.abortLocked(ctx)
	return s.result, nil
}

// FlagIfExpired completes the game with a timeout loss when the running
// side's projected balance has reached zero. Returns the result and true
// when the game was flagged by this call.
func (s *Session) FlagIfExpired(ctx context.Context) (*models.GameResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.GameStatusActive {
		return nil, false
	}
	side := s.clock.Running()
	if !s.clock.Flagged(side) {
		return nil, false
	}

	s.clock.Tick(side)
	winner := side.Opponent()
	s.finishLocked(ctx, outcomeForWinner(&winner), models.ReasonTimeout, &winner)
	return s.result, true
}

func (s *Session) sideOf(playerID uuid.UUID) (models.Side, bool) {
	switch playerID {
	case s.whiteID:
		return models.SideWhite, true
	case s.blackID:
		if s.blackID == uuid.Nil {
			return "", false
		}
		return models.SideBlack, true
	}
	return "", false
}

func (s *Session) playerIDFor(side models.Side) uuid.UUID {
	if side == models.SideWhite {
		return s.whiteID
	}
	return s.blackID
}

// completeLocked flips the session to COMPLETED and records the result
// in memory. It must run at most once per session.
func (s *Session) completeLocked(outcome models.Outcome, reason models.OutcomeReason, winner *models.Side) {
	s.status = models.GameStatusCompleted
	s.drawOfferBy = ""

	result := &models.GameResult{
		GameID:  s.ID,
		Outcome: outcome,
		Reason:  reason,
		EndedAt: s.clk.Now().UTC(),
	}
	if winner != nil {
		winnerID := s.playerIDFor(*winner)
		loserID := s.playerIDFor(winner.Opponent())
		result.WinnerID = &winnerID
		result.LoserID = &loserID
	} else if s.blackID != uuid.Nil {
		result.DrawIDs = []uuid.UUID{s.whiteID, s.blackID}
	}
	s.result = result

	log.Info().
		Str("game_id", s.ID.String()).
		Str("outcome", string(outcome)).
		Str("reason", string(reason)).
		Msg("game completed")
}

func (s *Session) finishLocked(ctx context.Context, outcome models.Outcome, reason models.OutcomeReason, winner *models.Side) {
	s.completeLocked(outcome, reason, winner)
	s.publishGameOverLocked()
	s.recordLocked(ctx)
}

func (s *Session) abortLocked(ctx context.Context) {
	s.status = models.GameStatusAborted
	s.result = &models.GameResult{
		GameID:  s.ID,
		Reason:  models.ReasonAborted,
		EndedAt: s.clk.Now().UTC(),
	}

	log.Info().Str("game_id", s.ID.String()).Msg("game aborted")

	s.publishGameOverLocked()
	s.recordLocked(ctx)
}

func (s *Session) recordLocked(ctx context.Context) {
	if s.recorder == nil || s.result == nil {
		return
	}
	if err := s.recorder.RecordResult(ctx, *s.result); err != nil {
		log.Error().
			Err(err).
			Str("game_id", s.ID.String()).
			Msg("failed to record game result")
	}
}

func (s *Session) publishStateLocked() {
	payload := events.StateUpdatePayload{
		Position:         string(s.position),
		Turn:             string(s.turn),
		IsOver:           s.status.Terminal(),
		WhiteRemainingMs: s.clock.Remaining(models.SideWhite).Milliseconds(),
		BlackRemainingMs: s.clock.Remaining(models.SideBlack).Milliseconds(),
	}
	if s.result != nil {
		payload.Outcome = string(s.result.Outcome)
	}
	if s.status == models.GameStatusActive {
		payload.RunningSide = string(s.clock.Running())
	}
	s.publishLocked(events.EventTypeStateUpdate, payload)
}

func (s *Session) publishGameOverLocked() {
	payload := events.GameOverPayload{
		Outcome: string(s.result.Outcome),
		Reason:  string(s.result.Reason),
		EndedAt: s.result.EndedAt,
	}
	switch s.result.Outcome {
	case models.OutcomeWhiteWins:
		payload.Winner = string(models.SideWhite)
	case models.OutcomeBlackWins:
		payload.Winner = string(models.SideBlack)
	}
	s.publishLocked(events.EventTypeGameOver, payload)
}

func (s *Session) publishLocked(eventType events.EventType, payload any) {
	if s.sink == nil {
		return
	}
	ev, err := events.NewGameEvent(s.ID, eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("game_id", s.ID.String()).Msg("failed to build game event")
		return
	}
	s.sink.Publish(ev)
}

func outcomeForWinner(winner *models.Side) models.Outcome {
	if winner == nil {
		return models.OutcomeDraw
	}
	if *winner == models.SideWhite {
		return models.OutcomeWhiteWins
	}
	return models.OutcomeBlackWins
}

func reasonForTermination(t rules.Termination) models.OutcomeReason {
	switch t {
	case rules.TerminationCheckmate:
		return models.ReasonCheckmate
	case rules.TerminationStalemate:
		return models.ReasonStalemate
	case rules.TerminationInsufficientMaterial:
		return models.ReasonInsufficientMaterial
	default:
		return models.ReasonDrawRule
	}
}

package game

import "errors"

var (
	// ErrNotFound is returned when no live game exists for an ID.
	ErrNotFound = errors.New("game not found")

	// ErrAlreadyFull is returned when joining a game that is not waiting
	// for an opponent.
	ErrAlreadyFull = errors.New("game already has two players")

	// ErrOwnGame is returned when a player tries to join their own game.
	ErrOwnGame = errors.New("cannot join your own game")

	// ErrNotInGame is returned when the acting player is not bound to
	// either side of the game.
	ErrNotInGame = errors.New("player is not part of this game")

	// ErrGameOver is returned when mutating a game that reached a
	// terminal status.
	ErrGameOver = errors.New("game is over")

	// ErrNotStarted is returned when moving in a game still waiting for
	// an opponent.
	ErrNotStarted = errors.New("game has not started")

	// ErrOutOfTurn is returned when the acting player is not the side to
	// move.
	ErrOutOfTurn = errors.New("not your turn")

	// ErrIllegalMove wraps every move the oracle rejects, including
	// oracle failures, with the diagnostic preserved in the message.
	ErrIllegalMove = errors.New("illegal move")

	// ErrNoDrawOffer is returned when accepting or declining a draw with
	// no live offer from the opponent.
	ErrNoDrawOffer = errors.New("no pending draw offer from opponent")

	// ErrHasActiveGame is returned by the create flow when the player
	// already has a waiting or active game.
	ErrHasActiveGame = errors.New("player already has a game in progress")
)

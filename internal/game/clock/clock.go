// Package clock tracks the two countdown timers of a game. It is pure
// arithmetic over an injected clockwork.Clock; callers are responsible for
// serializing access and for reacting to a flagged side.
package clock

import (
	"time"

	"github.com/castlelight/gambit/internal/models"
	"github.com/jonboulle/clockwork"
)

// Clock holds the remaining time for each side, which side's timer is
// running, and when it was last observed. Remaining time may go negative;
// a negative balance means the side has flagged.
type Clock struct {
	remaining  map[models.Side]time.Duration
	running    models.Side
	lastUpdate time.Time
	clk        clockwork.Clock
}

// New returns a clock with the same initial budget on both sides. Neither
// timer runs until Start is called.
func New(initial time.Duration, clk clockwork.Clock) *Clock {
	return &Clock{
		remaining: map[models.Side]time.Duration{
			models.SideWhite: initial,
			models.SideBlack: initial,
		},
		clk: clk,
	}
}

// Start marks side's timer as running from now. Calling Start on every turn
// flip also resets the observation point.
func (c *Clock) Start(side models.Side) {
	c.running = side
	c.lastUpdate = c.clk.Now()
}

// Debit subtracts elapsed from side's balance. Deterministic given inputs.
func (c *Clock) Debit(side models.Side, elapsed time.Duration) {
	c.remaining[side] -= elapsed
}

// Tick debits the wall-clock time elapsed since the last update against
// side and advances the observation point. Returns the elapsed duration.
func (c *Clock) Tick(side models.Side) time.Duration {
	now := c.clk.Now()
	elapsed := now.Sub(c.lastUpdate)
	c.remaining[side] -= elapsed
	c.lastUpdate = now
	return elapsed
}

// Remaining returns side's stored balance, excluding any in-flight elapsed
// time that has not been debited yet.
func (c *Clock) Remaining(side models.Side) time.Duration {
	return c.remaining[side]
}

// Projected returns side's balance as of now: the stored balance minus the
// undebited elapsed time when side's timer is the one running.
func (c *Clock) Projected(side models.Side) time.Duration {
	rem := c.remaining[side]
	if c.running == side && !c.lastUpdate.IsZero() {
		rem -= c.clk.Now().Sub(c.lastUpdate)
	}
	return rem
}

// Running returns the side whose timer is counting down, or the zero value
// if Start has not been called.
func (c *Clock) Running() models.Side {
	return c.running
}

// Flagged reports whether side has run out of time as of now.
func (c *Clock) Flagged(side models.Side) bool {
	return c.Projected(side) <= 0
}

package game

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically samples the clocks of active games and completes
// any whose running side has flagged. Move application only debits time
// lazily, so without the sweep an idle player's expired clock would not be
// detected until the opponent acted.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	clk      clockwork.Clock
	wakeCh   chan struct{}
}

// NewSweeper creates a sweeper over registry, sampling every interval.
func NewSweeper(registry *Registry, interval time.Duration, clk clockwork.Clock) *Sweeper {
	return &Sweeper{
		registry: registry,
		interval: interval,
		clk:      clk,
		wakeCh:   make(chan struct{}, 1),
	}
}

// Wake triggers an immediate sweep ahead of the next tick.
func (sw *Sweeper) Wake() {
	select {
	case sw.wakeCh <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled, sweeping on every tick.
func (sw *Sweeper) Run(ctx context.Context) error {
	log.Info().Dur("interval", sw.interval).Msg("clock sweeper started")

	timer := sw.clk.NewTimer(sw.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("clock sweeper shutting down")
			return nil
		case <-timer.Chan():
		case <-sw.wakeCh:
		}

		sw.Sweep(ctx)
		timer.Reset(sw.interval)
	}
}

// Sweep flags every active game whose running side is out of time and
// returns how many games it completed.
func (sw *Sweeper) Sweep(ctx context.Context) int {
	flagged := 0
	for _, s := range sw.registry.Active() {
		result, ok := s.FlagIfExpired(ctx)
		if !ok {
			continue
		}
		flagged++
		log.Info().
			Str("game_id", s.ID.String()).
			Str("outcome", string(result.Outcome)).
			Msg("game flagged on time")
	}
	return flagged
}

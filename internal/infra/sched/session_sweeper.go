package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"checkout-bridge/internal/infra/metrics"
)

// Sweeper is anything that can drop entries expired at now.
// memory.SessionStore and memory.WebhookDeduper both qualify.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// SessionSweeper periodically evicts expired checkout sessions so that
// orders nobody polls again do not pin memory. Expiry itself is enforced on
// read; the sweep only reclaims space.
type SessionSweeper struct {
	interval time.Duration
	sessions Sweeper
	others   []Sweeper
	now      func() time.Time
	log      *zerolog.Logger
}

func NewSessionSweeper(interval time.Duration, sessions Sweeper, logger *zerolog.Logger, others ...Sweeper) *SessionSweeper {
	l := logger.With().Str("component", "SessionSweeper").Logger()
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionSweeper{
		interval: interval,
		sessions: sessions,
		others:   others,
		now:      time.Now,
		log:      &l,
	}
}

func (w *SessionSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting session sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping session sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass and returns the number of sessions removed.
func (w *SessionSweeper) SweepOnce(ctx context.Context) int {
	now := w.now()
	n, err := w.sessions.Sweep(ctx, now)
	if err != nil {
		w.log.Error().Err(err).Msg("session sweep error")
	}
	if n > 0 {
		metrics.AddSessionsSwept(n)
		w.log.Info().Int("count", n).Msg("expired checkout sessions removed")
	}
	for _, o := range w.others {
		if _, err := o.Sweep(ctx, now); err != nil {
			w.log.Warn().Err(err).Msg("auxiliary sweep error")
		}
	}
	return n
}

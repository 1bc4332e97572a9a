package spammer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/antithesishq/antithesis-sdk-go/assert"

	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/generator"
	"github.com/flashbots/contender/internal/telemetry"
)

// DefaultPeriod is TimedSpammer's tick period T_p (spec.md §4.3).
const DefaultPeriod = time.Second

// TimedSpammer paces dispatch at a fixed period, anchored to a monotonic
// start time: tick i fires at start + i*period regardless of how long prior
// ticks' dispatch took. A tick whose deadline has already passed fires
// immediately and is logged as lagged (spec.md §4.3).
type TimedSpammer struct {
	dispatcher *Dispatcher
	period     time.Duration
	phase      atomic.Int32
}

// NewTimedSpammer builds a TimedSpammer with the given tick period; period
// <= 0 falls back to DefaultPeriod.
func NewTimedSpammer(dispatcher *Dispatcher, period time.Duration) *TimedSpammer {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &TimedSpammer{dispatcher: dispatcher, period: period}
}

// Phase implements Spammer.
func (s *TimedSpammer) Phase() Phase { return Phase(s.phase.Load()) }

// Spam implements Spammer.
func (s *TimedSpammer) Spam(ctx context.Context, gen *generator.Generator, rate, duration int, forever bool, cb Callback) error {
	s.phase.Store(int32(PhaseSpamming))

	if rate <= 0 {
		s.phase.Store(int32(PhaseDone))
		return nil
	}

	start := time.Now()
	refreshEvery := s.dispatcher.cfg.PeriodsPerGasRefresh

	for i := 0; forever || i < duration; i++ {
		deadline := start.Add(time.Duration(i) * s.period)
		if now := time.Now(); now.Before(deadline) {
			timer := time.NewTimer(deadline.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				s.phase.Store(int32(PhaseCancelled))
				return cerrors.ErrCancelled
			case <-timer.C:
			}
		} else if i > 0 {
			lag := now.Sub(deadline)
			telemetry.Log.WithField("tick", i).WithField("lag", lag).Warn("spammer: tick lagged")
			assert.Sometimes(lag < 10*s.period, "timed spammer tick lag stays bounded", map[string]any{
				"tick": i,
				"lag":  lag.String(),
			})
		}

		if ctx.Err() != nil {
			s.phase.Store(int32(PhaseCancelled))
			return cerrors.ErrCancelled
		}

		if i%refreshEvery == 0 {
			if err := s.dispatcher.pricer.Refresh(ctx); err != nil {
				telemetry.Log.WithError(err).Warn("spammer: gas price refresh failed")
			}
		}

		batch, err := gen.Batch(rate)
		if err != nil {
			return err
		}
		s.dispatcher.DispatchBatch(ctx, batch, 0, cb)
	}

	s.phase.Store(int32(PhaseDraining))
	return nil
}

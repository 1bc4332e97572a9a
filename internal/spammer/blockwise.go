package spammer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/generator"
	"github.com/flashbots/contender/internal/telemetry"
)

// DefaultMinHeadGap is the minimum spacing between heads BlockwiseSpammer
// acts on before collapsing a closely-following head (spec.md §4.3).
const DefaultMinHeadGap = 500 * time.Millisecond

// HeadSubscriber is the subset of chain.Client BlockwiseSpammer needs.
type HeadSubscriber interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

// BlockwiseSpammer paces dispatch on new block headers: each head
// (collapsed per DefaultMinHeadGap/minGap) triggers one batch targeting the
// next slot (spec.md §4.3). That batch is gen.Batch(rate): with a bundle
// generator it holds whole bundle groups until at least rate txs are
// pulled, so one group goes out per head only when rate is no larger than
// the bundle's template count.
type BlockwiseSpammer struct {
	dispatcher *Dispatcher
	chain      HeadSubscriber
	minGap     time.Duration
	phase      atomic.Int32
}

// NewBlockwiseSpammer builds a BlockwiseSpammer; minGap <= 0 falls back to
// DefaultMinHeadGap.
func NewBlockwiseSpammer(dispatcher *Dispatcher, chain HeadSubscriber, minGap time.Duration) *BlockwiseSpammer {
	if minGap <= 0 {
		minGap = DefaultMinHeadGap
	}
	return &BlockwiseSpammer{dispatcher: dispatcher, chain: chain, minGap: minGap}
}

// Phase implements Spammer.
func (s *BlockwiseSpammer) Phase() Phase { return Phase(s.phase.Load()) }

// Spam implements Spammer.
func (s *BlockwiseSpammer) Spam(ctx context.Context, gen *generator.Generator, rate, duration int, forever bool, cb Callback) error {
	s.phase.Store(int32(PhaseSpamming))

	if rate <= 0 {
		s.phase.Store(int32(PhaseDone))
		return nil
	}

	headCh := make(chan *types.Header, 16)
	sub, err := s.chain.SubscribeNewHead(ctx, headCh)
	if err != nil {
		s.phase.Store(int32(PhaseCancelled))
		return err
	}
	defer sub.Unsubscribe()

	refreshEvery := s.dispatcher.cfg.PeriodsPerGasRefresh
	var lastHeadAt time.Time
	batches := 0

	for forever || batches < duration {
		select {
		case <-ctx.Done():
			s.phase.Store(int32(PhaseCancelled))
			return cerrors.ErrCancelled
		case err := <-sub.Err():
			s.phase.Store(int32(PhaseCancelled))
			return cerrors.NewRpcError("eth_subscribe(newHeads)", err)
		case head := <-headCh:
			now := time.Now()
			if !lastHeadAt.IsZero() && now.Sub(lastHeadAt) < s.minGap {
				telemetry.Debugf("spammer: collapsing head %s (gap %s < %s)", head.Number, now.Sub(lastHeadAt), s.minGap)
				continue
			}
			lastHeadAt = now

			if batches%refreshEvery == 0 {
				if err := s.dispatcher.pricer.Refresh(ctx); err != nil {
					telemetry.Log.WithError(err).Warn("spammer: gas price refresh failed")
				}
			}

			batch, err := gen.Batch(rate)
			if err != nil {
				return err
			}
			targetBlock := head.Number.Uint64() + 1
			s.dispatcher.DispatchBatch(ctx, batch, targetBlock, cb)
			batches++
		}
	}

	s.phase.Store(int32(PhaseDraining))
	return nil
}

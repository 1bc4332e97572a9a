// Package txactor implements the TxActor (spec.md §4.4): ingest PendingTx
// records off a channel, collect receipts as new blocks arrive, and flush
// both to the DB in the background, decoupling RPC ingress from receipt
// bookkeeping so spamming is never blocked on it. The pending-tx cache is
// exclusively owned by the Run goroutine (spec.md §5); external callers
// communicate only through Submit/UpdateTargetBlock and read DoneFlushing
// via an atomic counter kept in step with the cache.
package txactor

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/flashbots/contender/internal/db"
	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/telemetry"
)

// Fetcher is the subset of chain.Client the actor needs to collect
// receipts.
type Fetcher interface {
	BlockReceipts(ctx context.Context, blockNumber uint64) ([]*types.Receipt, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Config tunes the actor's timing (spec.md §4.4/§5 defaults).
type Config struct {
	// IngressCapacity bounds the Submit channel; the ScenarioRunner defaults
	// it to 10x the run's rate (spec.md §5 backpressure), and NewActor falls
	// back to 10 when it is still unset.
	IngressCapacity int

	// CacheFlushInterval is how many processed blocks elapse between DB
	// flushes.
	CacheFlushInterval int

	// PendingTimeout evicts a cache entry with status=timeout if no receipt
	// lands within this window of dispatch.
	PendingTimeout time.Duration

	// DrainTimeout bounds how long Shutdown waits for the cache to empty.
	DrainTimeout time.Duration
}

const (
	DefaultCacheFlushInterval = 5
	DefaultPendingTimeout     = 12 * time.Second
	DefaultDrainTimeout       = 30 * time.Second
	maxFlushAttempts          = 3
)

func (c *Config) setDefaults() {
	if c.IngressCapacity <= 0 {
		c.IngressCapacity = 10
	}
	if c.CacheFlushInterval <= 0 {
		c.CacheFlushInterval = DefaultCacheFlushInterval
	}
	if c.PendingTimeout <= 0 {
		c.PendingTimeout = DefaultPendingTimeout
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
}

// Actor is one run's TxActor instance.
type Actor struct {
	chain Fetcher
	ops   db.Ops
	runID string
	cfg   Config

	ingress chan db.PendingTx
	blocks  chan uint64

	// Run-goroutine-owned state. Never touched from another goroutine.
	cache         map[string]db.PendingTx
	flushReceipts []db.Receipt

	// recordedHashes guards against queuing the same (run_id, hash) receipt
	// twice, e.g. when a per-hash fallback poll races a block-receipts scan.
	recordedHashes map[string]bool
}

// NewActor builds an Actor for one run.
func NewActor(chain Fetcher, ops db.Ops, runID string, cfg Config) *Actor {
	cfg.setDefaults()
	return &Actor{
		chain:          chain,
		ops:            ops,
		runID:          runID,
		cfg:            cfg,
		ingress:        make(chan db.PendingTx, cfg.IngressCapacity),
		blocks:         make(chan uint64, 1),
		cache:          make(map[string]db.PendingTx),
		recordedHashes: make(map[string]bool),
	}
}

// Submit enqueues tx for receipt tracking. It blocks when the ingress
// channel is full, which is the backpressure mechanism that bounds
// max_in_flight from the spammer side (spec.md §5).
func (a *Actor) Submit(tx db.PendingTx) {
	a.ingress <- tx
}

// UpdateTargetBlock notifies the actor of a new head to scan for receipts.
// Only the latest unconsumed block number is kept; stale updates are
// dropped since receipt collection always starts from the most recent head.
func (a *Actor) UpdateTargetBlock(n uint64) {
	select {
	case a.blocks <- n:
		return
	default:
	}
	select {
	case <-a.blocks:
	default:
	}
	select {
	case a.blocks <- n:
	default:
	}
}

// DoneFlushing reports whether the cache is empty, i.e. every submitted tx
// has either landed, reverted, or timed out; the receipts recorded for them
// may still be queued for the next flush.
func (a *Actor) DoneFlushing() bool {
	return len(a.cache) == 0
}

// Run drives the actor until ctx is cancelled, then drains (spec.md §4.4/§5
// cancellation phase (b)) before returning.
func (a *Actor) Run(ctx context.Context) error {
	blocksSinceFlush := 0
	evictTicker := time.NewTicker(a.cfg.PendingTimeout / 4)
	defer evictTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return a.drain()

		case tx := <-a.ingress:
			a.cache[tx.Hash] = tx

		case n := <-a.blocks:
			a.collectReceipts(ctx, n)
			a.evictTimedOut()
			blocksSinceFlush++
			if blocksSinceFlush >= a.cfg.CacheFlushInterval {
				a.flush(ctx)
				blocksSinceFlush = 0
			}

		case <-evictTicker.C:
			a.evictTimedOut()
		}
	}
}

// drain keeps collecting receipts (Run's DoneFlushing condition) until the
// cache empties or DrainTimeout elapses, then performs a final flush.
func (a *Actor) drain() error {
	ctx := context.Background()
	deadline := time.NewTimer(a.cfg.DrainTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var timedOut bool
	for !a.DoneFlushing() {
		select {
		case <-deadline.C:
			timedOut = true
		case n := <-a.blocks:
			a.collectReceipts(ctx, n)
			a.evictTimedOut()
			continue
		case <-ticker.C:
			a.evictTimedOut()
			continue
		}
		break
	}

	a.flush(ctx)
	if timedOut && !a.DoneFlushing() {
		telemetry.Log.WithField("remaining", len(a.cache)).Warn("txactor: drain timed out with pending txs remaining")
		return cerrors.NewReceiptTimeout("drain")
	}
	return nil
}

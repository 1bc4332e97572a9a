package txactor

import (
	"context"
	"time"

	"github.com/antithesishq/antithesis-sdk-go/assert"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/flashbots/contender/internal/db"
	"github.com/flashbots/contender/internal/randseed"
	"github.com/flashbots/contender/internal/telemetry"
)

// recordReceiptOnce queues r for the next flush, asserting that no earlier
// call already recorded a receipt for the same (run_id, hash): a run's
// pending cache deletes a hash the moment its receipt is recorded, so a
// second recording for the same pair would mean two collection paths raced
// on one tx.
func (a *Actor) recordReceiptOnce(r db.Receipt) {
	key := r.RunID + ":" + r.Hash
	dup := a.recordedHashes[key]
	a.recordedHashes[key] = true
	assert.Always(!dup, "at most one receipt is recorded per run and hash", map[string]any{
		"run_id": r.RunID,
		"hash":   r.Hash,
	})
	if dup {
		return
	}
	a.flushReceipts = append(a.flushReceipts, r)
}

// collectReceipts fetches every receipt for blockNum via
// eth_getBlockReceipts and matches them against cached pending txs by hash.
// On a transport failure (e.g. the node doesn't support the batch call) it
// falls back to a per-hash eth_getTransactionReceipt poll over the entire
// cache, which also covers txs that landed in earlier blocks the batch call
// never saw (spec.md §4.4/§6).
func (a *Actor) collectReceipts(ctx context.Context, blockNum uint64) {
	receipts, err := a.chain.BlockReceipts(ctx, blockNum)
	if err != nil {
		telemetry.Log.WithError(err).Debug("txactor: eth_getBlockReceipts failed, falling back to per-hash")
		a.collectReceiptsPerHash(ctx)
		return
	}

	for _, r := range receipts {
		hash := r.TxHash.Hex()
		tx, ok := a.cache[hash]
		if !ok {
			continue
		}
		delete(a.cache, hash)
		a.recordReceiptOnce(receiptFrom(a.runID, tx, r))
	}
}

func (a *Actor) collectReceiptsPerHash(ctx context.Context) {
	for hash, tx := range a.cache {
		r, err := a.chain.TransactionReceipt(ctx, common.HexToHash(hash))
		if err != nil {
			if err == ethereum.NotFound {
				continue
			}
			telemetry.Log.WithError(err).Debug("txactor: per-hash receipt poll failed")
			continue
		}
		delete(a.cache, hash)
		a.recordReceiptOnce(receiptFrom(a.runID, tx, r))
	}
}

// evictTimedOut removes cache entries that have resided longer than
// PendingTimeout without a receipt, recording them as timed out (spec.md
// §4.4: "pending_timeout ... default 12s").
func (a *Actor) evictTimedOut() {
	now := time.Now()
	for hash, tx := range a.cache {
		if now.Sub(tx.SentAt) < a.cfg.PendingTimeout {
			continue
		}
		delete(a.cache, hash)
		a.recordReceiptOnce(db.Receipt{
			RunID:    a.runID,
			Hash:     hash,
			Status:   db.StatusTimeout,
			Error:    "timeout",
			LandedAt: now,
		})
	}
}

func receiptFrom(runID string, tx db.PendingTx, r *types.Receipt) db.Receipt {
	status := db.StatusSuccess
	errStr := ""
	if r.Status == types.ReceiptStatusFailed {
		status = db.StatusReverted
		errStr = "execution reverted"
	}
	var blockHash string
	if r.BlockHash != (common.Hash{}) {
		blockHash = r.BlockHash.Hex()
	}
	var blockNumber uint64
	if r.BlockNumber != nil {
		blockNumber = r.BlockNumber.Uint64()
	}
	return db.Receipt{
		RunID:       runID,
		Hash:        tx.Hash,
		BlockNumber: blockNumber,
		BlockHash:   blockHash,
		GasUsed:     r.GasUsed,
		Status:      status,
		Error:       errStr,
		LandedAt:    time.Now(),
	}
}

// flush writes every still-pending cache entry plus any collected receipts
// to the DB, retrying with exponential backoff up to maxFlushAttempts
// (spec.md §4.4). A receipt's presence implies the tx is no longer pending,
// so its pending_tx row is removed once the receipt lands.
func (a *Actor) flush(ctx context.Context) {
	pending := make([]db.PendingTx, 0, len(a.cache))
	for _, tx := range a.cache {
		pending = append(pending, tx)
	}
	receipts := a.flushReceipts
	a.flushReceipts = nil

	if len(pending) == 0 && len(receipts) == 0 {
		return
	}

	var err error
	for attempt := 0; attempt < maxFlushAttempts; attempt++ {
		err = a.doFlush(ctx, pending, receipts)
		if err == nil {
			return
		}
		telemetry.Log.WithError(err).WithField("attempt", attempt+1).Warn("txactor: flush failed, retrying")
		time.Sleep(backoff(attempt))
	}
	telemetry.Log.WithError(err).Error("txactor: flush failed after retries, dropping batch")
}

func (a *Actor) doFlush(ctx context.Context, pending []db.PendingTx, receipts []db.Receipt) error {
	if len(pending) > 0 {
		if err := a.ops.InsertPendingTxs(ctx, pending); err != nil {
			return err
		}
	}
	if len(receipts) == 0 {
		return nil
	}
	if err := a.ops.InsertReceipts(ctx, receipts); err != nil {
		return err
	}
	for _, r := range receipts {
		if err := a.ops.DeletePendingTx(ctx, a.runID, r.Hash); err != nil {
			telemetry.Log.WithError(err).Warn("txactor: delete landed pending_tx failed")
		}
	}
	return nil
}

// backoff grows exponentially from a 100ms base and adds jitter of up to
// the current (doubled) delay, drawn from the process-wide random source since retry
// timing has no need to be reproducible from a run seed.
func backoff(attempt int) time.Duration {
	d := 100 * time.Millisecond
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	jitter := time.Duration(randseed.GlobalIntn(int(d/time.Millisecond))) * time.Millisecond
	return d + jitter
}

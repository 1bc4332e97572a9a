package txactor

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"pgregory.net/rapid"

	"github.com/flashbots/contender/internal/db"
)

// stableFetcher always serves the same fixed receipt set, regardless of
// which block number is requested — standing in for a node that never
// advances, so repeated collectReceipts calls are the only variable.
type stableFetcher struct {
	receipts []*types.Receipt
}

func (f *stableFetcher) BlockReceipts(ctx context.Context, blockNumber uint64) ([]*types.Receipt, error) {
	return f.receipts, nil
}

func (f *stableFetcher) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	for _, r := range f.receipts {
		if r.TxHash == hash {
			return r, nil
		}
	}
	return nil, ethereum.NotFound
}

// TestPropertyCollectReceiptsNeverDuplicates asserts spec.md §8's
// at-most-one-receipt-per-hash invariant: no matter how many times
// collectReceipts observes the same block (e.g. redundant head
// notifications), each cached hash is flushed exactly once and removed
// from the pending cache.
func TestPropertyCollectReceiptsNeverDuplicates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(t, "n")
		rounds := rapid.IntRange(1, 5).Draw(t, "rounds")

		receipts := make([]*types.Receipt, n)
		a := &Actor{
			runID:          "r1",
			cache:          make(map[string]db.PendingTx),
			recordedHashes: make(map[string]bool),
		}
		for i := 0; i < n; i++ {
			hash := common.BigToHash(big.NewInt(int64(i + 1)))
			receipts[i] = &types.Receipt{
				TxHash:      hash,
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(1),
			}
			a.cache[hash.Hex()] = db.PendingTx{Hash: hash.Hex(), RunID: "r1"}
		}
		a.chain = &stableFetcher{receipts: receipts}

		for i := 0; i < rounds; i++ {
			a.collectReceipts(context.Background(), 1)
		}

		if len(a.flushReceipts) != n {
			t.Fatalf("flushReceipts has %d entries after %d rounds, want %d", len(a.flushReceipts), rounds, n)
		}
		seen := make(map[string]bool, n)
		for _, r := range a.flushReceipts {
			if seen[r.Hash] {
				t.Fatalf("duplicate receipt for hash %s", r.Hash)
			}
			seen[r.Hash] = true
		}
		if len(a.cache) != 0 {
			t.Fatalf("cache still has %d entries after collecting all receipts", len(a.cache))
		}
	})
}

// TestPropertyCollectReceiptsPerHashNeverDuplicates mirrors the above for
// the per-hash fallback path, used when eth_getBlockReceipts is
// unavailable.
func TestPropertyCollectReceiptsPerHashNeverDuplicates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(t, "n")

		receipts := make([]*types.Receipt, n)
		a := &Actor{
			runID:          "r1",
			cache:          make(map[string]db.PendingTx),
			recordedHashes: make(map[string]bool),
		}
		for i := 0; i < n; i++ {
			hash := common.BigToHash(big.NewInt(int64(i + 1)))
			receipts[i] = &types.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}
			a.cache[hash.Hex()] = db.PendingTx{Hash: hash.Hex(), RunID: "r1"}
		}
		a.chain = &stableFetcher{receipts: receipts}

		a.collectReceiptsPerHash(context.Background())
		a.collectReceiptsPerHash(context.Background())

		if len(a.flushReceipts) != n {
			t.Fatalf("flushReceipts has %d entries, want %d", len(a.flushReceipts), n)
		}
		if len(a.cache) != 0 {
			t.Fatalf("cache still has %d entries after collecting all receipts", len(a.cache))
		}
	})
}

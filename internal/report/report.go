// Package report accumulates per-run outcome counts and renders the
// user-visible completion line (spec.md §7: "N sent, M landed, K reverted,
// R timed-out").
package report

import (
	"fmt"
	"sync/atomic"

	"github.com/flashbots/contender/internal/db"
)

// Summary is a concurrency-safe accumulator, fed incrementally as receipts
// land during a run.
type Summary struct {
	sent     atomic.Int64
	landed   atomic.Int64
	reverted atomic.Int64
	timedOut atomic.Int64
}

// RecordSent increments the sent counter; call once per dispatched tx.
func (s *Summary) RecordSent() { s.sent.Add(1) }

// RecordReceipt increments the counter matching r's status.
func (s *Summary) RecordReceipt(r db.Receipt) {
	switch r.Status {
	case db.StatusSuccess:
		s.landed.Add(1)
	case db.StatusReverted:
		s.reverted.Add(1)
	case db.StatusTimeout:
		s.timedOut.Add(1)
	}
}

// Counts returns the current (sent, landed, reverted, timedOut) tuple.
func (s *Summary) Counts() (sent, landed, reverted, timedOut int64) {
	return s.sent.Load(), s.landed.Load(), s.reverted.Load(), s.timedOut.Load()
}

// String renders spec.md §7's exact completion-line format.
func (s *Summary) String() string {
	sent, landed, reverted, timedOut := s.Counts()
	return fmt.Sprintf("%d sent, %d landed, %d reverted, %d timed-out", sent, landed, reverted, timedOut)
}

// FromReceipts reconstructs a Summary from a run's final DB state: sent is
// derived as len(pending)+len(receipts) since every receipt (landed,
// reverted, or timed-out) causes the TxActor to delete its pending_tx row
// on flush, leaving only still-in-flight entries in pending (spec.md §4.4).
func FromReceipts(pending []db.PendingTx, receipts []db.Receipt) *Summary {
	s := &Summary{}
	total := int64(len(pending) + len(receipts))
	s.sent.Store(total)
	for _, r := range receipts {
		s.RecordReceipt(r)
	}
	return s
}

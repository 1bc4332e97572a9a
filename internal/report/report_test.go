package report_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashbots/contender/internal/db"
	"github.com/flashbots/contender/internal/report"
)

func TestSummaryStringFormat(t *testing.T) {
	var s report.Summary
	s.RecordSent()
	s.RecordSent()
	s.RecordSent()
	s.RecordReceipt(db.Receipt{Status: db.StatusSuccess})
	s.RecordReceipt(db.Receipt{Status: db.StatusReverted})
	s.RecordReceipt(db.Receipt{Status: db.StatusTimeout})

	require.Equal(t, "3 sent, 1 landed, 1 reverted, 1 timed-out", s.String())
}

func TestSummaryIgnoresUnknownStatus(t *testing.T) {
	var s report.Summary
	s.RecordReceipt(db.Receipt{Status: "pending"})
	sent, landed, reverted, timedOut := s.Counts()
	require.Zero(t, sent)
	require.Zero(t, landed)
	require.Zero(t, reverted)
	require.Zero(t, timedOut)
}

func TestFromReceiptsDerivesSentFromPendingPlusReceipts(t *testing.T) {
	pending := []db.PendingTx{
		{Hash: "0x1"},
		{Hash: "0x2"},
	}
	receipts := []db.Receipt{
		{Hash: "0x3", Status: db.StatusSuccess},
		{Hash: "0x4", Status: db.StatusReverted},
		{Hash: "0x5", Status: db.StatusTimeout},
	}

	s := report.FromReceipts(pending, receipts)
	sent, landed, reverted, timedOut := s.Counts()
	require.EqualValues(t, 5, sent)
	require.EqualValues(t, 1, landed)
	require.EqualValues(t, 1, reverted)
	require.EqualValues(t, 1, timedOut)
}

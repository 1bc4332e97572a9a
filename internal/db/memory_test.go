package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/flashbots/contender/internal/db"
	"github.com/stretchr/testify/require"
)

func TestMemoryCheckSchemaMismatch(t *testing.T) {
	m := db.NewMemoryWithSchemaVersion(db.SchemaVersion + 1)
	err := m.CheckSchema(context.Background())
	require.ErrorIs(t, err, db.ErrSchemaMismatch)
}

func TestMemoryCheckSchemaOK(t *testing.T) {
	m := db.NewMemory()
	require.NoError(t, m.CheckSchema(context.Background()))
}

func TestMemoryRunRoundTrip(t *testing.T) {
	m := db.NewMemory()
	ctx := context.Background()

	run := db.Run{RunID: "run-1", ScenarioName: "fill-block", StartBlock: 10}
	require.NoError(t, m.CreateRun(ctx, run))

	got, ok, err := m.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, run, got)

	require.NoError(t, m.UpdateRunEndBlock(ctx, "run-1", 13))
	got, _, _ = m.GetRun(ctx, "run-1")
	require.Equal(t, uint64(13), got.EndBlock)
}

func TestMemoryUpdateUnknownRunFails(t *testing.T) {
	m := db.NewMemory()
	err := m.UpdateRunEndBlock(context.Background(), "ghost", 1)
	require.Error(t, err)
}

func TestMemoryNamedTxScopedByLabel(t *testing.T) {
	m := db.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.InsertNamedTx(ctx, db.NamedTx{RunID: "r1", Name: "weth", Address: "0xabc", ScenarioLabel: "a"}))
	require.NoError(t, m.InsertNamedTx(ctx, db.NamedTx{RunID: "r1", Name: "weth", Address: "0xdef", ScenarioLabel: "b"}))

	a, ok, err := m.GetNamedTx(ctx, "r1", "weth", "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0xabc", a.Address)

	b, ok, err := m.GetNamedTx(ctx, "r1", "weth", "b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0xdef", b.Address)
}

func TestMemoryPendingTxLifecycle(t *testing.T) {
	m := db.NewMemory()
	ctx := context.Background()

	txs := []db.PendingTx{
		{RunID: "r1", Hash: "0x1", Signer: "0xaaa", SentAt: time.Now()},
		{RunID: "r1", Hash: "0x2", Signer: "0xaaa", SentAt: time.Now()},
		{RunID: "r2", Hash: "0x3", Signer: "0xbbb", SentAt: time.Now()},
	}
	require.NoError(t, m.InsertPendingTxs(ctx, txs))

	list, err := m.ListPendingTxs(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, m.DeletePendingTx(ctx, "r1", "0x1"))
	list, _ = m.ListPendingTxs(ctx, "r1")
	require.Len(t, list, 1)
	require.Equal(t, "0x2", list[0].Hash)
}

func TestMemoryReceiptsAtMostOnePerHash(t *testing.T) {
	m := db.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.InsertReceipts(ctx, []db.Receipt{
		{RunID: "r1", Hash: "0x1", Status: db.StatusSuccess, GasUsed: 21000},
	}))
	require.NoError(t, m.InsertReceipts(ctx, []db.Receipt{
		{RunID: "r1", Hash: "0x1", Status: db.StatusReverted, Error: "execution reverted"},
	}))

	list, err := m.ListReceipts(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, db.StatusReverted, list[0].Status)
}

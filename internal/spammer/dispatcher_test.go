package spammer_test

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/flashbots/contender/internal/chain"
	"github.com/flashbots/contender/internal/db"
	"github.com/flashbots/contender/internal/gaspricer"
	"github.com/flashbots/contender/internal/generator"
	"github.com/flashbots/contender/internal/registry"
	"github.com/flashbots/contender/internal/scenario"
	"github.com/flashbots/contender/internal/signer"
	"github.com/flashbots/contender/internal/spammer"
)

type fakeChain struct {
	mu        sync.Mutex
	sent      [][]byte
	sentBatch [][][]byte
	bundles   [][][]byte
	failEvery int
	calls     int
}

func (f *fakeChain) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failEvery > 0 && f.calls%f.failEvery == 0 {
		return common.Hash{}, context.DeadlineExceeded
	}
	f.sent = append(f.sent, raw)
	tx := new(types.Transaction)
	_ = tx.UnmarshalBinary(raw)
	return tx.Hash(), nil
}

func (f *fakeChain) SendRawTransactionBatch(ctx context.Context, raws [][]byte) ([]common.Hash, []error) {
	f.mu.Lock()
	f.sentBatch = append(f.sentBatch, raws)
	f.mu.Unlock()
	hashes := make([]common.Hash, len(raws))
	errs := make([]error, len(raws))
	for i, raw := range raws {
		tx := new(types.Transaction)
		_ = tx.UnmarshalBinary(raw)
		hashes[i] = tx.Hash()
	}
	return hashes, errs
}

func (f *fakeChain) SendBundle(ctx context.Context, rawTxs [][]byte, targetBlock uint64) (*chain.SendBundleResult, error) {
	f.mu.Lock()
	f.bundles = append(f.bundles, rawTxs)
	f.mu.Unlock()
	return &chain.SendBundleResult{BundleHash: "0xdeadbeef"}, nil
}

type fakeGasChain struct{}

func (fakeGasChain) SuggestGasPrice(ctx context.Context) (*big.Int, error)   { return big.NewInt(10), nil }
func (fakeGasChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error)  { return big.NewInt(1), nil }
func (fakeGasChain) HeaderByNumber(ctx context.Context, n *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(10)}, nil
}
func (fakeGasChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}

func newTestDispatcher(t *testing.T, chainFake *fakeChain, signers []*signer.Signer) *spammer.Dispatcher {
	t.Helper()
	pricer := gaspricer.New(fakeGasChain{}, nil)
	require.NoError(t, pricer.Refresh(context.Background()))

	signerMap := make(map[common.Address]*signer.Signer, len(signers))
	for _, s := range signers {
		signerMap[s.Address()] = s
	}

	return spammer.NewDispatcher(chainFake, pricer, spammer.NewNonceTracker(), signerMap, spammer.Config{
		RunID:   "run-1",
		ChainID: big.NewInt(1),
	})
}

func testSigners(t *testing.T, seed [32]byte, n int) []*signer.Signer {
	t.Helper()
	pool, err := signer.NewAgentPool(seed, "spammers", n)
	require.NoError(t, err)
	return pool.All()
}

func TestDispatchBatchSendsIndividually(t *testing.T) {
	seed := [32]byte{1}
	signers := testSigners(t, seed, 2)
	fc := &fakeChain{}
	d := newTestDispatcher(t, fc, signers)

	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	var delivered []db.PendingTx
	txs := []*scenario.PlannedTx{
		{Kind: scenario.KindSpamTx, To: &to, Value: big.NewInt(0), SignerAddr: signers[0].Address()},
		{Kind: scenario.KindSpamTx, To: &to, Value: big.NewInt(0), SignerAddr: signers[1].Address()},
	}

	d.DispatchBatch(context.Background(), txs, 0, func(p db.PendingTx) {
		delivered = append(delivered, p)
	})

	require.Len(t, fc.sent, 2)
	require.Len(t, delivered, 2)
	for _, p := range delivered {
		require.Equal(t, "run-1", p.RunID)
		require.Equal(t, "spam", p.Kind)
		require.NotEmpty(t, p.Hash)
	}
}

func TestDispatchBatchNonceAssignedInOrderPerSigner(t *testing.T) {
	seed := [32]byte{2}
	signers := testSigners(t, seed, 1)
	fc := &fakeChain{}
	d := newTestDispatcher(t, fc, signers)

	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	txs := make([]*scenario.PlannedTx, 8)
	for i := range txs {
		txs[i] = &scenario.PlannedTx{Kind: scenario.KindSpamTx, To: &to, Value: big.NewInt(0), SignerAddr: signers[0].Address()}
	}

	d.DispatchBatch(context.Background(), txs, 0, func(db.PendingTx) {})

	seenNonces := make(map[uint64]bool)
	for _, raw := range fc.sent {
		tx := new(types.Transaction)
		require.NoError(t, tx.UnmarshalBinary(raw))
		require.False(t, seenNonces[tx.Nonce()], "nonce %d reused", tx.Nonce())
		seenNonces[tx.Nonce()] = true
	}
	require.Len(t, seenNonces, 8)
	for i := uint64(0); i < 8; i++ {
		require.True(t, seenNonces[i])
	}
}

func TestDispatchBatchGroupsIntoRPCBatches(t *testing.T) {
	seed := [32]byte{3}
	signers := testSigners(t, seed, 1)
	fc := &fakeChain{}
	pricer := gaspricer.New(fakeGasChain{}, nil)
	require.NoError(t, pricer.Refresh(context.Background()))
	signerMap := map[common.Address]*signer.Signer{signers[0].Address(): signers[0]}
	d := spammer.NewDispatcher(fc, pricer, spammer.NewNonceTracker(), signerMap, spammer.Config{
		RunID:        "run-1",
		ChainID:      big.NewInt(1),
		RPCBatchSize: 3,
	})

	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	txs := make([]*scenario.PlannedTx, 7)
	for i := range txs {
		txs[i] = &scenario.PlannedTx{Kind: scenario.KindSpamTx, To: &to, Value: big.NewInt(0), SignerAddr: signers[0].Address()}
	}

	var delivered int
	d.DispatchBatch(context.Background(), txs, 0, func(db.PendingTx) { delivered++ })

	require.Equal(t, 7, delivered)
	require.Len(t, fc.sentBatch, 3) // 3+3+1
}

func TestDispatchBatchBundleSentTogether(t *testing.T) {
	seed := [32]byte{4}
	signers := testSigners(t, seed, 2)
	fc := &fakeChain{}
	d := newTestDispatcher(t, fc, signers)

	toA := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	toB := common.HexToAddress("0x0000000000000000000000000000000000bEEf")
	txs := []*scenario.PlannedTx{
		{Kind: scenario.KindBundleTx, To: &toA, Value: big.NewInt(0), SignerAddr: signers[0].Address(), BundleID: "b1"},
		{Kind: scenario.KindBundleTx, To: &toB, Value: big.NewInt(0), SignerAddr: signers[1].Address(), BundleID: "b1"},
	}

	var delivered []db.PendingTx
	d.DispatchBatch(context.Background(), txs, 100, func(p db.PendingTx) { delivered = append(delivered, p) })

	require.Len(t, fc.bundles, 1)
	require.Len(t, fc.bundles[0], 2)
	require.Len(t, delivered, 2)
	require.Equal(t, "bundle", delivered[0].Kind)
	require.Equal(t, "b1", delivered[0].BundleID)
}

func TestDispatchBatchSkipsUnregisteredSigner(t *testing.T) {
	seed := [32]byte{5}
	signers := testSigners(t, seed, 1)
	fc := &fakeChain{}
	d := newTestDispatcher(t, fc, signers)

	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	stranger := common.HexToAddress("0x0000000000000000000000000000000000beef")
	txs := []*scenario.PlannedTx{
		{Kind: scenario.KindSpamTx, To: &to, Value: big.NewInt(0), SignerAddr: stranger},
	}

	var delivered int
	d.DispatchBatch(context.Background(), txs, 0, func(db.PendingTx) { delivered++ })
	require.Equal(t, 0, delivered)
	require.Empty(t, fc.sent)
}

func TestDispatchBatchWithGeneratorEndToEnd(t *testing.T) {
	seed := [32]byte{6}
	signers := testSigners(t, seed, 2)
	pools := map[string]*signer.AgentPool{}
	pool, err := signer.NewAgentPool(seed, "spammers", 2)
	require.NoError(t, err)
	pools["spammers"] = pool

	tmpl := &scenario.TxTemplate{
		Kind:     scenario.KindSpamTx,
		To:       "0x000000000000000000000000000000000000dEaD",
		FromPool: "spammers",
		Value:    "0",
	}
	planner := scenario.NewPlanner(registry.NewEnvStore(nil, nil), nil, "")
	gen := generator.NewTxGenerator(seed, 0, planner, pools, nil, tmpl)

	fc := &fakeChain{}
	d := newTestDispatcher(t, fc, signers)

	batch, err := gen.Batch(4)
	require.NoError(t, err)

	var delivered int
	d.DispatchBatch(context.Background(), batch, 0, func(db.PendingTx) { delivered++ })
	require.Equal(t, 4, delivered)
}

// Package spammer implements the TimedSpammer (TPS) and BlockwiseSpammer
// (TPB) scheduling disciplines (spec.md §4.3): pace batches, dispatch them
// concurrently with bounded in-flight RPC calls, and hand every
// successfully-sent tx to a Callback (typically the TxActor's ingress
// queue). The batch-dispatch shape — pull a batch, sign, send, track
// sent/confirmed counts — generalizes a per-vector send-and-assert
// bombardment loop to arbitrary PlannedTx batches.
package spammer

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/antithesishq/antithesis-sdk-go/assert"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/flashbots/contender/internal/chain"
	"github.com/flashbots/contender/internal/db"
	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/gaspricer"
	"github.com/flashbots/contender/internal/scenario"
	"github.com/flashbots/contender/internal/signer"
	"github.com/flashbots/contender/internal/telemetry"
)

// Callback receives one db.PendingTx per successfully dispatched
// transaction (spec.md §4.3 step 5); the TxActor's submit is the typical
// implementation.
type Callback func(db.PendingTx)

// Chain is the subset of chain.Client the dispatcher issues raw sends
// against. Kept narrow so tests can fake it without a live node.
type Chain interface {
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
	SendRawTransactionBatch(ctx context.Context, raws [][]byte) ([]common.Hash, []error)
	SendBundle(ctx context.Context, rawTxs [][]byte, targetBlock uint64) (*chain.SendBundleResult, error)
}

// Config tunes batch dispatch (spec.md §4.3).
type Config struct {
	RunID string

	// RPCBatchSize groups individual sends into one JSON-RPC batch call.
	// 1 means individual calls, and NewDispatcher replaces the zero value
	// with 1, so 0 does not select one-batch mode; a negative value sends
	// the whole batch as one RPC batch.
	RPCBatchSize int

	// MaxInFlight bounds concurrent dispatch goroutines. 0 means "derive
	// from rate at dispatch time" (2x rate, per spec.md §4.3).
	MaxInFlight int

	// PeriodsPerGasRefresh is how many dispatch periods elapse between
	// gaspricer.Pricer.Refresh calls.
	PeriodsPerGasRefresh int

	ChainID *big.Int
}

// Dispatcher builds, signs, and sends one dispatch period's batch of
// PlannedTx, serializing per-signer dispatch order so a signer's nonces
// always hit the wire in assignment order even when different signers'
// sends run concurrently (spec.md §5).
type Dispatcher struct {
	chain   Chain
	pricer  *gaspricer.Pricer
	nonces  *NonceTracker
	signers map[common.Address]*signer.Signer
	cfg     Config

	signerLocks sync.Map // common.Address -> *sync.Mutex
}

// NewDispatcher builds a Dispatcher. signers must contain every address a
// batch's PlannedTx.SignerAddr may reference (every pool's signers plus the
// funder), since the dispatcher needs the private key to sign, not just the
// address PlannedTx carries.
func NewDispatcher(chain Chain, pricer *gaspricer.Pricer, nonces *NonceTracker, signers map[common.Address]*signer.Signer, cfg Config) *Dispatcher {
	if cfg.RPCBatchSize == 0 {
		cfg.RPCBatchSize = 1
	}
	if cfg.PeriodsPerGasRefresh <= 0 {
		cfg.PeriodsPerGasRefresh = 1
	}
	return &Dispatcher{
		chain:   chain,
		pricer:  pricer,
		nonces:  nonces,
		signers: signers,
		cfg:     cfg,
	}
}

func (d *Dispatcher) lockFor(addr common.Address) *sync.Mutex {
	v, _ := d.signerLocks.LoadOrStore(addr, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// DispatchBatch builds, signs, and sends every tx in txs, invoking cb for
// each successful send. Bundle-tagged txs (PlannedTx.BundleID set) are
// grouped and sent via eth_sendBundle targeting targetBlock; ungrouped txs
// are grouped into RPCBatchSize-sized eth_sendRawTransaction batches.
// Concurrency across groups is bounded by maxInFlight.
func (d *Dispatcher) DispatchBatch(ctx context.Context, txs []*scenario.PlannedTx, targetBlock uint64, cb Callback) {
	maxInFlight := d.cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 2 * len(txs)
	}
	if maxInFlight <= 0 {
		maxInFlight = 1
	}

	singles := make([]*scenario.PlannedTx, 0, len(txs))
	var bundleOrder []string
	bundles := make(map[string][]*scenario.PlannedTx)
	for _, tx := range txs {
		if tx.BundleID == "" {
			singles = append(singles, tx)
			continue
		}
		if _, ok := bundles[tx.BundleID]; !ok {
			bundleOrder = append(bundleOrder, tx.BundleID)
		}
		bundles[tx.BundleID] = append(bundles[tx.BundleID], tx)
	}

	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup

	for _, group := range d.groupForRPCBatch(singles) {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(group []*scenario.PlannedTx) {
			defer wg.Done()
			defer func() { <-sem }()
			d.dispatchGroup(ctx, group, cb)
		}(group)
	}

	for _, id := range bundleOrder {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(group []*scenario.PlannedTx) {
			defer wg.Done()
			defer func() { <-sem }()
			d.dispatchBundle(ctx, group, targetBlock, cb)
		}(bundles[id])
	}

	wg.Wait()
}

// groupForRPCBatch splits txs into RPCBatchSize-sized chunks; a size <= 0
// (only a negative configured size, since NewDispatcher turns 0 into 1)
// means "all in one chunk."
func (d *Dispatcher) groupForRPCBatch(txs []*scenario.PlannedTx) [][]*scenario.PlannedTx {
	if len(txs) == 0 {
		return nil
	}
	size := d.cfg.RPCBatchSize
	if size <= 0 {
		return [][]*scenario.PlannedTx{txs}
	}
	var out [][]*scenario.PlannedTx
	for i := 0; i < len(txs); i += size {
		end := i + size
		if end > len(txs) {
			end = len(txs)
		}
		out = append(out, txs[i:end])
	}
	return out
}

func (d *Dispatcher) dispatchGroup(ctx context.Context, group []*scenario.PlannedTx, cb Callback) {
	if d.cfg.RPCBatchSize == 1 {
		d.dispatchSingle(ctx, group[0], cb)
		return
	}

	raws := make([][]byte, 0, len(group))
	pendings := make([]db.PendingTx, 0, len(group))
	for _, planned := range group {
		signed, err := d.signOne(ctx, planned)
		if err != nil {
			telemetry.Log.WithError(err).Warn("spammer: skip tx")
			continue
		}
		raws = append(raws, signed.RawTx)
		pendings = append(pendings, d.pendingFrom(planned, signed))
	}
	if len(raws) == 0 {
		return
	}

	_, errs := d.chain.SendRawTransactionBatch(ctx, raws)
	for i, err := range errs {
		if err != nil {
			telemetry.Log.WithError(err).Warn("spammer: batch send failed")
			continue
		}
		cb(pendings[i])
	}
}

func (d *Dispatcher) dispatchSingle(ctx context.Context, planned *scenario.PlannedTx, cb Callback) {
	signed, err := d.signOne(ctx, planned)
	if err != nil {
		telemetry.Log.WithError(err).Warn("spammer: skip tx")
		return
	}

	hash, err := d.chain.SendRawTransaction(ctx, signed.RawTx)
	if err != nil {
		telemetry.Log.WithError(err).Warn("spammer: send failed")
		return
	}

	pending := d.pendingFrom(planned, signed)
	pending.Hash = hash.Hex()
	cb(pending)
}

func (d *Dispatcher) dispatchBundle(ctx context.Context, group []*scenario.PlannedTx, targetBlock uint64, cb Callback) {
	raws := make([][]byte, 0, len(group))
	pendings := make([]db.PendingTx, 0, len(group))
	for _, planned := range group {
		signed, err := d.signOne(ctx, planned)
		if err != nil {
			telemetry.Log.WithError(err).Warn("spammer: skip bundle tx")
			continue
		}
		raws = append(raws, signed.RawTx)
		p := d.pendingFrom(planned, signed)
		p.Kind = "bundle"
		pendings = append(pendings, p)
	}
	if len(raws) == 0 {
		return
	}

	if _, err := d.chain.SendBundle(ctx, raws, targetBlock); err != nil {
		telemetry.Log.WithError(err).Warn("spammer: send bundle failed")
		return
	}
	for _, p := range pendings {
		cb(p)
	}
}

func (d *Dispatcher) pendingFrom(planned *scenario.PlannedTx, signed *scenario.SignedTx) db.PendingTx {
	return db.PendingTx{
		Hash:     signed.Hash.Hex(),
		Signer:   planned.SignerAddr.Hex(),
		SentAt:   time.Now(),
		RunID:    d.cfg.RunID,
		Kind:     kindString(planned.Kind),
		BundleID: planned.BundleID,
	}
}

// signOne serializes per-signer dispatch: nonce assignment and signing for
// a given signer happen under that signer's lock, so two goroutines racing
// on the same signer can never assign nonces out of order (spec.md §5).
func (d *Dispatcher) signOne(ctx context.Context, planned *scenario.PlannedTx) (*scenario.SignedTx, error) {
	mu := d.lockFor(planned.SignerAddr)
	mu.Lock()
	defer mu.Unlock()

	nonce := d.nonces.Next(planned.SignerAddr)
	signed, err := d.buildAndSign(ctx, planned, nonce)
	if err != nil {
		return nil, err
	}
	assert.Always(signed.Nonce == nonce, "signed tx carries its assigned nonce", map[string]any{
		"signer": planned.SignerAddr.Hex(),
		"nonce":  nonce,
	})
	return signed, nil
}

func (d *Dispatcher) buildAndSign(ctx context.Context, planned *scenario.PlannedTx, nonce uint64) (*scenario.SignedTx, error) {
	s, ok := d.signers[planned.SignerAddr]
	if !ok {
		return nil, cerrors.NewSignerError("dispatch", fmt.Errorf("no registered signer for %s", planned.SignerAddr.Hex()))
	}

	gasLimit, err := d.resolveGasLimit(ctx, planned)
	if err != nil {
		return nil, err
	}

	feeCap, tipCap := d.pricer.FeeCaps()

	var unsigned *types.Transaction
	if d.pricer.IsLegacy() || planned.TxType == scenario.TxTypeLegacy {
		unsigned = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: feeCap,
			Gas:      gasLimit,
			To:       planned.To,
			Value:    valueOrZero(planned.Value),
			Data:     planned.Data,
		})
	} else {
		unsigned = types.NewTx(&types.DynamicFeeTx{
			ChainID:   d.cfg.ChainID,
			Nonce:     nonce,
			GasTipCap: tipCap,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        planned.To,
			Value:     valueOrZero(planned.Value),
			Data:      planned.Data,
		})
	}

	signedTx, err := types.SignTx(unsigned, types.LatestSignerForChainID(d.cfg.ChainID), s.PrivateKey())
	if err != nil {
		return nil, cerrors.NewSignerError("sign tx", err)
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, cerrors.NewSignerError("marshal tx", err)
	}

	return &scenario.SignedTx{
		Planned:   *planned,
		Nonce:     nonce,
		GasFeeCap: feeCap,
		GasTipCap: tipCap,
		RawTx:     raw,
		Hash:      signedTx.Hash(),
	}, nil
}

// SignWithNonce builds and signs planned against an already-assigned nonce,
// bypassing the per-signer lock and the tracker's own nonce assignment. The
// Scenario Runner's deploy/setup phases use this when they need the nonce
// value before sending, e.g. to compute a created contract's address via
// crypto.CreateAddress (spec.md §4.5 step 3).
func (d *Dispatcher) SignWithNonce(ctx context.Context, planned *scenario.PlannedTx, nonce uint64) (*scenario.SignedTx, error) {
	return d.buildAndSign(ctx, planned, nonce)
}

// Send submits an already-signed tx and returns its hash.
func (d *Dispatcher) Send(ctx context.Context, signed *scenario.SignedTx) (common.Hash, error) {
	return d.chain.SendRawTransaction(ctx, signed.RawTx)
}

// resolveGasLimit uses the scenario's explicit gas_limit when set, else
// estimates and caches via the Pricer (spec.md §4.3).
func (d *Dispatcher) resolveGasLimit(ctx context.Context, planned *scenario.PlannedTx) (uint64, error) {
	if planned.GasLimit != nil {
		return *planned.GasLimit, nil
	}
	msg := ethereum.CallMsg{
		From:  planned.SignerAddr,
		To:    planned.To,
		Data:  planned.Data,
		Value: valueOrZero(planned.Value),
	}
	gas, err := d.pricer.EstimateGas(ctx, planned.SignerAddr, templateHash(planned), msg)
	if err != nil {
		return 0, err
	}
	return gas, nil
}

// templateHash approximates "same call shape" from a PlannedTx alone (kind,
// destination, 4-byte selector), since the Dispatcher only sees materialized
// txs, not the originating TxTemplate.
func templateHash(p *scenario.PlannedTx) string {
	to := "create"
	if p.To != nil {
		to = p.To.Hex()
	}
	sel := ""
	if len(p.Data) >= 4 {
		sel = hex.EncodeToString(p.Data[:4])
	}
	return fmt.Sprintf("%d:%s:%s", p.Kind, to, sel)
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func kindString(k scenario.Kind) string {
	switch k {
	case scenario.KindCreate:
		return "create"
	case scenario.KindSetup:
		return "setup"
	case scenario.KindSpamTx:
		return "spam"
	case scenario.KindBundleTx:
		return "bundle"
	default:
		return "unknown"
	}
}

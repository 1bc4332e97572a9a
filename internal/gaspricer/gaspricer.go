// Package gaspricer tracks EIP-1559 basefee/tip and per-template gas-limit
// estimates for the spammer (spec.md §4.3). Refresh is periodic rather than
// per-tx to keep gas pricing cheap under high throughput; gas-limit
// estimates are cached per (signer, template-hash) since repeated spam
// iterations overwhelmingly reuse the same call shape.
package gaspricer

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/flashbots/contender/internal/telemetry"
)

// Chain is the subset of chain.Client gaspricer depends on.
type Chain interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// FixedPrice configures a static legacy gas price (the --gas-price CLI
// override); when set, basefee tracking is disabled (spec.md §4.3).
type FixedPrice struct {
	GasPrice *big.Int
}

// Pricer tracks gas pricing and caches gas-limit estimates.
type Pricer struct {
	chain Chain
	fixed *FixedPrice

	mu       sync.RWMutex
	baseFee  *big.Int
	tip      *big.Int
	gasCache map[gasCacheKey]uint64
}

type gasCacheKey struct {
	signer common.Address
	hash   string
}

// New builds a Pricer against chain. If fixed is non-nil, Refresh is a
// no-op and every FeeCaps call returns the fixed legacy price.
func New(chain Chain, fixed *FixedPrice) *Pricer {
	return &Pricer{
		chain:    chain,
		fixed:    fixed,
		gasCache: make(map[gasCacheKey]uint64),
	}
}

// Refresh fetches the latest basefee and suggested tip. No-op under a fixed
// price (spec.md §4.3: "When --gas-price is set, basefee tracking is
// disabled").
func (p *Pricer) Refresh(ctx context.Context) error {
	if p.fixed != nil {
		return nil
	}

	header, err := p.chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return err
	}
	tip, err := p.chain.SuggestGasTipCap(ctx)
	if err != nil {
		return err
	}

	baseFee := header.BaseFee
	if baseFee == nil {
		// Pre-EIP-1559 chain: fall back to legacy gas price as a basefee proxy.
		baseFee, err = p.chain.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.baseFee = baseFee
	p.tip = tip
	p.mu.Unlock()

	telemetry.Debugf("gaspricer: refreshed baseFee=%s tip=%s", baseFee, tip)
	return nil
}

// FeeCaps returns (maxFeePerGas, maxPriorityFeePerGas) for a dynamic-fee tx,
// or (gasPrice, nil) for a legacy tx under a fixed price (spec.md §4.3:
// "spam txs use maxFeePerGas = 2*baseFee + tip, maxPriorityFeePerGas = tip").
func (p *Pricer) FeeCaps() (feeCap, tipCap *big.Int) {
	if p.fixed != nil {
		return new(big.Int).Set(p.fixed.GasPrice), nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.baseFee == nil || p.tip == nil {
		return big.NewInt(0), big.NewInt(0)
	}
	feeCap = new(big.Int).Mul(p.baseFee, big.NewInt(2))
	feeCap.Add(feeCap, p.tip)
	return feeCap, new(big.Int).Set(p.tip)
}

// IsLegacy reports whether FeeCaps should be interpreted as a single legacy
// gasPrice (true when a fixed price is configured).
func (p *Pricer) IsLegacy() bool {
	return p.fixed != nil
}

// EstimateGas estimates and caches a gas limit for (signer, template-hash),
// per spec.md §4.3: "estimate via eth_estimateGas once per (signer,
// template-hash) and cache." Any cached value, zero included, is returned
// without a new RPC call; failed estimates are not cached.
func (p *Pricer) EstimateGas(ctx context.Context, signer common.Address, templateHash string, msg ethereum.CallMsg) (uint64, error) {
	key := gasCacheKey{signer: signer, hash: templateHash}

	p.mu.RLock()
	cached, ok := p.gasCache[key]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	gas, err := p.chain.EstimateGas(ctx, msg)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.gasCache[key] = gas
	p.mu.Unlock()
	return gas, nil
}

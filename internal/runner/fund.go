package runner

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/flashbots/contender/internal/db"
	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/telemetry"
)

// Fund tops up every derived signer below cfg.MinBalance from the funder,
// failing fast if the funder itself cannot cover the shortfall before any
// funding tx is sent (spec.md §4.5 step 2).
func (r *ScenarioRunner) Fund(ctx context.Context) error {
	if r.cfg.MinBalance == nil || r.cfg.MinBalance.Sign() <= 0 {
		return nil
	}
	if r.funder == nil {
		return cerrors.NewFundingError(r.cfg.MinBalance.String(), "0 (no funder configured)")
	}

	type shortfall struct {
		addr common.Address
		need *big.Int
	}
	var shortfalls []shortfall
	total := new(big.Int)

	for addr := range r.signers {
		if addr == r.funder.Address() {
			continue
		}
		bal, err := r.chain.BalanceAt(ctx, addr)
		if err != nil {
			return err
		}
		if bal.Cmp(r.cfg.MinBalance) >= 0 {
			continue
		}
		need := new(big.Int).Sub(r.cfg.MinBalance, bal)
		shortfalls = append(shortfalls, shortfall{addr: addr, need: need})
		total.Add(total, need)
	}
	if len(shortfalls) == 0 {
		return nil
	}

	funderBal, err := r.chain.BalanceAt(ctx, r.funder.Address())
	if err != nil {
		return err
	}
	if funderBal.Cmp(total) < 0 {
		return cerrors.NewFundingError(total.String(), funderBal.String())
	}

	telemetry.Log.WithField("count", len(shortfalls)).Info("runner: funding underfunded signers")

	for _, sf := range shortfalls {
		addr := sf.addr
		nonce := r.nonces.Next(r.funder.Address())
		feeCap, tipCap := r.pricer.FeeCaps()

		var unsigned *types.Transaction
		if r.pricer.IsLegacy() {
			unsigned = types.NewTx(&types.LegacyTx{
				Nonce:    nonce,
				GasPrice: feeCap,
				Gas:      21000,
				To:       &addr,
				Value:    sf.need,
			})
		} else {
			unsigned = types.NewTx(&types.DynamicFeeTx{
				ChainID:   r.cfg.ChainID,
				Nonce:     nonce,
				GasTipCap: tipCap,
				GasFeeCap: feeCap,
				Gas:       21000,
				To:        &addr,
				Value:     sf.need,
			})
		}

		signed, err := types.SignTx(unsigned, types.LatestSignerForChainID(r.cfg.ChainID), r.funder.PrivateKey())
		if err != nil {
			return cerrors.NewSignerError("sign funding tx", err)
		}
		raw, err := signed.MarshalBinary()
		if err != nil {
			return cerrors.NewSignerError("marshal funding tx", err)
		}
		hash, err := r.chain.SendRawTransaction(ctx, raw)
		if err != nil {
			return cerrors.NewRpcError("fund signer", err)
		}
		r.submitPending(db.PendingTx{
			Hash:   hash.Hex(),
			Signer: r.funder.Address().Hex(),
			RunID:  r.runID,
			Kind:   "fund",
		})
	}
	return nil
}

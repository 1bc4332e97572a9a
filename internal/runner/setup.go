package runner

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/flashbots/contender/internal/config"
	"github.com/flashbots/contender/internal/db"
	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/scenario"
	"github.com/flashbots/contender/internal/telemetry"
)

// Setup dispatches every [[setup]] directive in bounded-concurrency
// windows: a window's entire batch of hashes must land on-chain before the
// next window starts (spec.md §4.3/§4.5 step 4). Window size defaults to
// SETUP_CONCURRENCY_LIMIT.
func (r *ScenarioRunner) Setup(ctx context.Context) error {
	limit := r.cfg.SetupConcurrency
	if limit <= 0 {
		limit = config.SetupConcurrencyLimit()
	}

	for start := 0; start < len(r.scen.Setups); start += limit {
		end := start + limit
		if end > len(r.scen.Setups) {
			end = len(r.scen.Setups)
		}
		window := r.scen.Setups[start:end]

		hashes, err := r.dispatchSetupWindow(ctx, window, start)
		if err != nil {
			return err
		}
		if err := r.awaitLanded(ctx, hashes); err != nil {
			return err
		}
	}
	return nil
}

func (r *ScenarioRunner) dispatchSetupWindow(ctx context.Context, window []scenario.TxTemplate, baseIdx int) ([]common.Hash, error) {
	hashes := make([]common.Hash, 0, len(window))
	for i := range window {
		tmpl := &window[i]

		signerAddr, err := r.resolveSignerAddr(tmpl)
		if err != nil {
			return nil, err
		}

		planned, err := tmpl.Materialize(scenario.MaterializeArgs{
			Planner:    r.planner,
			SignerAddr: signerAddr,
			Fuzz:       scenario.FuzzContext{RunSeed: r.seed, StepIndex: baseIdx + i},
		})
		if err != nil {
			return nil, err
		}
		nonce := r.nonces.Next(signerAddr)
		signed, err := r.dispatcher.SignWithNonce(ctx, planned, nonce)
		if err != nil {
			return nil, err
		}
		hash, err := r.dispatcher.Send(ctx, signed)
		if err != nil {
			return nil, cerrors.NewRpcError("setup dispatch", err)
		}

		r.submitPending(db.PendingTx{
			Hash:   hash.Hex(),
			Signer: signerAddr.Hex(),
			RunID:  r.runID,
			Kind:   "setup",
		})
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

// awaitLanded polls each hash in hashes until it has a receipt or
// cfg.SetupLandTimeout elapses.
func (r *ScenarioRunner) awaitLanded(ctx context.Context, hashes []common.Hash) error {
	if len(hashes) == 0 {
		return nil
	}
	deadline := time.Now().Add(r.cfg.SetupLandTimeout)
	remaining := make(map[common.Hash]bool, len(hashes))
	for _, h := range hashes {
		remaining[h] = true
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		for h := range remaining {
			if _, err := r.chain.TransactionReceipt(ctx, h); err != nil {
				if err == ethereum.NotFound {
					continue
				}
				telemetry.Log.WithError(err).Debug("runner: setup receipt poll failed")
				continue
			}
			delete(remaining, h)
		}
		if len(remaining) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			for h := range remaining {
				return cerrors.NewReceiptTimeout(h.Hex())
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

package runner

import (
	"context"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/flashbots/contender/internal/db"
	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/registry"
	"github.com/flashbots/contender/internal/scenario"
)

// Deploy sends every [[create]] directive in declaration order, computing
// each contract's address via CREATE's deterministic sender+nonce formula
// rather than waiting for a receipt, then assigning it to the
// ContractRegistry so later directives can resolve it by name (spec.md
// §4.5 step 3, §4.1).
func (r *ScenarioRunner) Deploy(ctx context.Context) error {
	for i := range r.scen.Creates {
		tmpl := &r.scen.Creates[i]

		signerAddr, err := r.resolveSignerAddr(tmpl)
		if err != nil {
			return err
		}

		planned, err := tmpl.Materialize(scenario.MaterializeArgs{
			Planner:    r.planner,
			SignerAddr: signerAddr,
			Fuzz:       scenario.FuzzContext{RunSeed: r.seed, StepIndex: i},
		})
		if err != nil {
			return err
		}
		nonce := r.nonces.Next(signerAddr)
		signed, err := r.dispatcher.SignWithNonce(ctx, planned, nonce)
		if err != nil {
			return err
		}

		contractAddr := crypto.CreateAddress(signerAddr, nonce)

		hash, err := r.dispatcher.Send(ctx, signed)
		if err != nil {
			return cerrors.NewRpcError("deploy "+tmpl.Name, err)
		}

		if tmpl.Name != "" {
			entry := registry.ContractEntry{
				Address:       contractAddr.Hex(),
				DeployTxHash:  hash.Hex(),
				RPCURL:        r.cfg.RPCURL,
				ScenarioLabel: r.scen.Label,
			}
			if err := r.contracts.Assign(tmpl.Name, r.scen.Label, entry); err != nil {
				return err
			}
			if r.ops != nil {
				if err := r.ops.InsertNamedTx(ctx, db.NamedTx{
					RunID:         r.runID,
					Name:          tmpl.Name,
					Address:       entry.Address,
					DeployTxHash:  entry.DeployTxHash,
					ScenarioLabel: r.scen.Label,
				}); err != nil {
					return cerrors.NewDbError("insert named tx", err)
				}
			}
			r.refreshPlanner()
		}

		r.submitPending(db.PendingTx{
			Hash:   hash.Hex(),
			Signer: signerAddr.Hex(),
			RunID:  r.runID,
			Kind:   "create",
		})
	}
	return nil
}

// Package generator implements the lazy, restartable PlannedTx/Bundle
// sequence per spam step (spec.md §4.2): signers are drawn from agent pools
// in round-robin order, fuzz values are drawn deterministically from
// (run_seed, step_index, tx_index, iteration), and a batch is a contiguous
// slice of the sequence sized to the period's target.
package generator

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"

	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/randseed"
	"github.com/flashbots/contender/internal/scenario"
	"github.com/flashbots/contender/internal/signer"
)

// Generator produces PlannedTx (single-template steps) or grouped bundle
// PlannedTx slices (bundle steps) for one [[spam]] directive. It is safe for
// concurrent use only insofar as the underlying AgentPool.Next() is: callers
// sharing a pool across concurrent steps get correct round-robin fan-out,
// but a single Generator's own iteration counter is itself atomic so
// concurrent Batch calls on the same Generator never repeat an iteration.
type Generator struct {
	runSeed   [32]byte
	stepIndex int

	planner *scenario.Planner
	pools   map[string]*signer.AgentPool
	funder  *signer.Signer

	template *scenario.TxTemplate
	bundle   *scenario.Bundle

	iteration atomic.Uint64
}

// NewTxGenerator builds a Generator that repeatedly materializes a single
// TxTemplate, one PlannedTx per iteration.
func NewTxGenerator(runSeed [32]byte, stepIndex int, planner *scenario.Planner, pools map[string]*signer.AgentPool, funder *signer.Signer, tmpl *scenario.TxTemplate) *Generator {
	return &Generator{
		runSeed:   runSeed,
		stepIndex: stepIndex,
		planner:   planner,
		pools:     pools,
		funder:    funder,
		template:  tmpl,
	}
}

// NewBundleGenerator builds a Generator that repeatedly materializes an
// entire Bundle as one dispatch unit, tagging every member tx with a shared
// bundle id (spec.md §9: "bundles ... a first-class variant of the
// dispatched unit").
func NewBundleGenerator(runSeed [32]byte, stepIndex int, planner *scenario.Planner, pools map[string]*signer.AgentPool, funder *signer.Signer, bundle *scenario.Bundle) *Generator {
	return &Generator{
		runSeed:   runSeed,
		stepIndex: stepIndex,
		planner:   planner,
		pools:     pools,
		funder:    funder,
		bundle:    bundle,
	}
}

// Reset rewinds the iteration counter to zero, making the sequence replay
// from its beginning (spec.md §4.2 "lazy, restartable").
func (g *Generator) Reset() {
	g.iteration.Store(0)
}

// Next materializes the next PlannedTx for a single-template Generator.
func (g *Generator) Next() (*scenario.PlannedTx, error) {
	if g.template == nil {
		return nil, fmt.Errorf("generator: Next called on a bundle generator")
	}
	iter := g.iteration.Add(1) - 1

	s, err := g.resolveSigner(g.template)
	if err != nil {
		return nil, err
	}

	return g.template.Materialize(scenario.MaterializeArgs{
		Planner:    g.planner,
		SignerAddr: s.Address(),
		Fuzz: scenario.FuzzContext{
			RunSeed:   g.runSeed,
			StepIndex: g.stepIndex,
			TxIndex:   0,
			Iteration: int(iter),
		},
	})
}

// NextBundle materializes the next bundle group for a bundle Generator: one
// PlannedTx per template in the bundle, all sharing one BundleID.
func (g *Generator) NextBundle() ([]*scenario.PlannedTx, error) {
	if g.bundle == nil {
		return nil, fmt.Errorf("generator: NextBundle called on a single-template generator")
	}
	iter := g.iteration.Add(1) - 1
	id := bundleID(g.runSeed, g.stepIndex, iter)

	out := make([]*scenario.PlannedTx, len(g.bundle.Templates))
	for i := range g.bundle.Templates {
		tmpl := &g.bundle.Templates[i]
		s, err := g.resolveSigner(tmpl)
		if err != nil {
			return nil, err
		}

		planned, err := tmpl.Materialize(scenario.MaterializeArgs{
			Planner:    g.planner,
			SignerAddr: s.Address(),
			BundleID:   id,
			Fuzz: scenario.FuzzContext{
				RunSeed:   g.runSeed,
				StepIndex: g.stepIndex,
				TxIndex:   i,
				Iteration: int(iter),
			},
		})
		if err != nil {
			return nil, err
		}
		out[i] = planned
	}
	return out, nil
}

// Batch pulls n PlannedTx from the sequence, sized to one dispatch period's
// target (spec.md §4.2: "the generator commits to emitting the batch before
// the spammer advances the clock"). For a bundle Generator, whole bundle
// groups are pulled until at least n txs have been collected; the final
// group may overshoot n if the bundle has more than one member tx.
func (g *Generator) Batch(n int) ([]*scenario.PlannedTx, error) {
	if n <= 0 {
		return nil, nil
	}
	if g.bundle != nil {
		out := make([]*scenario.PlannedTx, 0, n)
		for len(out) < n {
			txs, err := g.NextBundle()
			if err != nil {
				return nil, err
			}
			out = append(out, txs...)
		}
		return out, nil
	}

	out := make([]*scenario.PlannedTx, n)
	for i := 0; i < n; i++ {
		tx, err := g.Next()
		if err != nil {
			return nil, err
		}
		out[i] = tx
	}
	return out, nil
}

// resolveSigner picks the signer for tmpl: a pinned from_addr (parsed as a
// hex private key) takes precedence over from_pool round-robin assignment.
func (g *Generator) resolveSigner(tmpl *scenario.TxTemplate) (*signer.Signer, error) {
	if tmpl.FromAddr != "" {
		return signer.FromHexKey(tmpl.FromAddr)
	}
	if tmpl.FromPool == "" {
		if g.funder != nil {
			return g.funder, nil
		}
		return nil, cerrors.NewSignerError("resolve tx signer", fmt.Errorf("template has neither from_pool, from, nor a funder fallback"))
	}
	pool, ok := g.pools[tmpl.FromPool]
	if !ok {
		return nil, cerrors.NewSignerError("resolve tx signer", fmt.Errorf("unknown agent pool %q", tmpl.FromPool))
	}
	return pool.Next(), nil
}

// bundleID derives a deterministic, reproducible bundle identifier from the
// run seed, step index, and iteration, so that replaying a run with the same
// seed assigns the same bundle ids (spec.md §8 reproducibility property).
func bundleID(runSeed [32]byte, stepIndex int, iter uint64) string {
	src := randseed.Derive(runSeed, "bundle-id", strconv.Itoa(stepIndex), strconv.FormatUint(iter, 10))
	var buf [16]byte
	src.Bytes(buf[:])
	return hex.EncodeToString(buf[:])
}

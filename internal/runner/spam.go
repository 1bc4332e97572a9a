package runner

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/flashbots/contender/internal/db"
	"github.com/flashbots/contender/internal/generator"
	"github.com/flashbots/contender/internal/scenario"
	"github.com/flashbots/contender/internal/spammer"
)

// Spam runs every [[spam]] step concurrently, one spammer.Spam invocation
// per step, splitting cfg.Rate evenly across steps (spec.md §4.5 step 5;
// the same per-step fan-out CampaignRunner uses for weighted mix entries,
// see stagemix.go). The actor's head feed is owned by runWithActor, not
// Spam, since Fund/Deploy/Setup submit to the actor too and drain needs it
// to outlive Spam's own return.
func (r *ScenarioRunner) Spam(ctx context.Context) error {
	if len(r.scen.Spam) == 0 {
		return nil
	}

	rates := splitRate(r.cfg.Rate, len(r.scen.Spam))

	errCh := make(chan error, len(r.scen.Spam))
	for i, step := range r.scen.Spam {
		i, step := i, step
		go func() {
			gen := r.generatorForStep(i, step)
			sp := r.newSpammer()
			errCh <- sp.Spam(ctx, gen, rates[i], r.cfg.Duration, r.cfg.Forever, r.callback())
		}()
	}

	var firstErr error
	for range r.scen.Spam {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *ScenarioRunner) generatorForStep(stepIndex int, step scenario.SpamStep) *generator.Generator {
	if step.Bundle != nil {
		return generator.NewBundleGenerator(r.seed, stepIndex, r.planner, r.pools, r.funder, step.Bundle)
	}
	return generator.NewTxGenerator(r.seed, stepIndex, r.planner, r.pools, r.funder, step.Template)
}

func (r *ScenarioRunner) newSpammer() spammer.Spammer {
	if r.cfg.Mode == scenario.SpamModeTPB {
		return spammer.NewBlockwiseSpammer(r.dispatcher, r.chain, r.cfg.MinHeadGap)
	}
	return spammer.NewTimedSpammer(r.dispatcher, r.cfg.Period)
}

func (r *ScenarioRunner) callback() spammer.Callback {
	return func(tx db.PendingTx) {
		r.submitPending(tx)
	}
}

// watchHeads subscribes independently of any BlockwiseSpammer (which only
// uses heads for its own pacing) and forwards every head to the TxActor, so
// receipt collection advances even under TimedSpammer (spec.md §4.4).
// Returns a stop function that unsubscribes. Started and stopped by
// runWithActor, which keeps it alive through the actor's drain phase.
func (r *ScenarioRunner) watchHeads(ctx context.Context) func() {
	headCh := make(chan *types.Header, 16)
	sub, err := r.chain.SubscribeNewHead(ctx, headCh)
	if err != nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case head, ok := <-headCh:
				if !ok {
					return
				}
				r.actor.UpdateTargetBlock(head.Number.Uint64())
			}
		}
	}()
	return func() {
		sub.Unsubscribe()
		<-done
	}
}

package runner

import (
	"context"

	"github.com/antithesishq/antithesis-sdk-go/lifecycle"
	"github.com/google/uuid"

	"github.com/flashbots/contender/internal/db"
	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/randseed"
	"github.com/flashbots/contender/internal/scenario"
	"github.com/flashbots/contender/internal/signer"
	"github.com/flashbots/contender/internal/telemetry"
)

// CampaignConfig tunes a CampaignRunner invocation. Per-scenario settings
// (gas, dispatch tuning, txactor behavior) are inherited from Base, with
// Rate/Duration/Mode overridden per stage/mix entry.
type CampaignConfig struct {
	Base Config
}

// CampaignRunner composes multiple scenario runs into one named campaign
// (spec.md §4.6): a one-time setup phase, then ordered stages, each running
// a weighted mix of scenarios concurrently under one shared Run record.
type CampaignRunner struct {
	chain  Chain
	ops    db.Ops
	funder *signer.Signer
	camp   *scenario.Campaign
	cfg    CampaignConfig
}

// NewCampaignRunner builds a CampaignRunner for camp.
func NewCampaignRunner(chain Chain, ops db.Ops, camp *scenario.Campaign, funder *signer.Signer, cfg CampaignConfig) *CampaignRunner {
	return &CampaignRunner{chain: chain, ops: ops, funder: funder, camp: camp, cfg: cfg}
}

// Run executes camp.SetupScenarios once, signals Antithesis that setup has
// completed, then runs every stage in order (spec.md §4.6).
func (cr *CampaignRunner) Run(ctx context.Context) error {
	seed := cr.seed()

	for _, scen := range cr.camp.SetupScenarios {
		runCfg := cr.cfg.Base
		runCfg.RunID = uuid.NewString()
		sr := NewScenarioRunner(cr.chain, cr.ops, scen, cr.funder, nil, seed, runCfg)
		if err := sr.Run(ctx); err != nil {
			return err
		}
	}

	telemetry.Log.Info("campaign: setup complete, signaling lifecycle")
	lifecycle.SetupComplete(map[string]any{
		"campaign": cr.camp.Name,
	})

	for _, stage := range cr.camp.Stages {
		if err := validateMix(stage.Mix); err != nil {
			return err
		}
		if err := cr.runStage(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

func (cr *CampaignRunner) runStage(ctx context.Context, stage scenario.Stage) error {
	runID := uuid.NewString()
	seed := cr.seed()

	startBlock, err := currentBlock(ctx, cr.chain)
	if err != nil {
		return err
	}

	duration := stage.DurationSecs
	if stage.Mode == scenario.SpamModeTPB {
		duration = stage.DurationBlocks
	}

	if cr.ops != nil {
		if err := cr.ops.CreateRun(ctx, db.Run{
			RunID:          runID,
			CampaignName:   cr.camp.Name,
			StageName:      stage.Name,
			StartBlock:     startBlock,
			TxsPerDuration: cr.cfg.Base.Rate,
			RPCURL:         cr.cfg.Base.RPCURL,
		}); err != nil {
			return cerrors.NewDbError("create campaign run", err)
		}
	}

	rates := splitStageRates(stage.Mix, cr.cfg.Base.Rate)

	errCh := make(chan error, len(stage.Mix))
	for i, entry := range stage.Mix {
		i, entry := i, entry
		go func() {
			runCfg := cr.cfg.Base
			runCfg.RunID = runID
			runCfg.Rate = rates[i]
			runCfg.Mode = stage.Mode
			runCfg.Duration = duration

			sr := NewScenarioRunner(cr.chain, cr.ops, entry.Scenario, cr.funder, nil, seed, runCfg)
			errCh <- sr.SpamOnly(ctx)
		}()
	}

	var firstErr error
	for range stage.Mix {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if endBlock, err := currentBlock(context.Background(), cr.chain); err == nil && cr.ops != nil {
		_ = cr.ops.UpdateRunEndBlock(context.Background(), runID, endBlock)
	}
	return firstErr
}

func (cr *CampaignRunner) seed() [32]byte {
	if cr.camp.Seed != nil {
		return *cr.camp.Seed
	}
	src := randseed.Derive([32]byte{}, "campaign", cr.camp.Name)
	var seed [32]byte
	src.Bytes(seed[:])
	return seed
}

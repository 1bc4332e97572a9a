package runner

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/flashbots/contender/internal/db"
	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/gaspricer"
	"github.com/flashbots/contender/internal/registry"
	"github.com/flashbots/contender/internal/scenario"
	"github.com/flashbots/contender/internal/signer"
	"github.com/flashbots/contender/internal/spammer"
	"github.com/flashbots/contender/internal/telemetry"
	"github.com/flashbots/contender/internal/txactor"
)

const defaultSetupLandTimeout = 30 * time.Second

// Config tunes one ScenarioRunner invocation.
type Config struct {
	RunID string // generated if empty

	Rate     int
	Duration int // batches (TPS) or blocks (TPB)
	Forever  bool
	Mode     scenario.SpamMode
	Period   time.Duration // TimedSpammer tick period

	MinBalance    *big.Int // nil/zero disables funding
	ChainID       *big.Int
	FixedGasPrice *gaspricer.FixedPrice

	RPCBatchSize         int
	MaxInFlight          int
	PeriodsPerGasRefresh int
	MinHeadGap           time.Duration

	SetupConcurrency int
	SetupLandTimeout time.Duration

	TxActor txactor.Config
	RPCURL  string
}

func (c *Config) setDefaults() {
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	if c.ChainID == nil {
		telemetry.Log.Warn("runner: no chain id configured, defaulting to 1")
		c.ChainID = big.NewInt(1)
	}
	if c.Period <= 0 {
		c.Period = spammer.DefaultPeriod
	}
	if c.SetupLandTimeout <= 0 {
		c.SetupLandTimeout = defaultSetupLandTimeout
	}
}

// ScenarioRunner drives one scenario through its full lifecycle (spec.md
// §4.5).
type ScenarioRunner struct {
	chain  Chain
	ops    db.Ops
	scen   *scenario.Scenario
	funder *signer.Signer
	env    *registry.EnvStore
	runID  string
	seed   [32]byte
	cfg    Config

	pools      map[string]*signer.AgentPool
	signers    map[common.Address]*signer.Signer
	contracts  *registry.ContractRegistry
	planner    *scenario.Planner
	nonces     *spammer.NonceTracker
	pricer     *gaspricer.Pricer
	dispatcher *spammer.Dispatcher
	actor      *txactor.Actor
}

// NewScenarioRunner builds a ScenarioRunner for scen. funder signs funding
// and, absent a from_pool/from override, any directive with no assigned
// signer. envOverrides take precedence over the scenario's own [env] block.
func NewScenarioRunner(chain Chain, ops db.Ops, scen *scenario.Scenario, funder *signer.Signer, envOverrides map[string]string, seed [32]byte, cfg Config) *ScenarioRunner {
	cfg.setDefaults()
	if cfg.TxActor.IngressCapacity <= 0 {
		cfg.TxActor.IngressCapacity = 10 * cfg.Rate
	}
	return &ScenarioRunner{
		chain:  chain,
		ops:    ops,
		scen:   scen,
		funder: funder,
		env:    registry.NewEnvStore(scen.Env, envOverrides),
		runID:  cfg.RunID,
		seed:   seed,
		cfg:    cfg,
		actor:  txactor.NewActor(chain, ops, cfg.RunID, cfg.TxActor),
	}
}

// RunID returns this run's identifier.
func (r *ScenarioRunner) RunID() string { return r.runID }

// Load parses nothing (the scenario arrives already parsed) but computes
// agent-pool sizes, derives signers, initializes nonce counters from
// on-chain state, and builds the Planner/Dispatcher (spec.md §4.5 step 1).
func (r *ScenarioRunner) Load(ctx context.Context) error {
	r.pools = make(map[string]*signer.AgentPool)
	poolNames := r.scen.PoolNames()
	poolSize := signer.PoolSize(r.cfg.Rate, len(poolNames))
	if poolSize == 0 {
		poolSize = 1
	}
	for _, name := range poolNames {
		pool, err := signer.NewAgentPool(r.seed, name, poolSize)
		if err != nil {
			return err
		}
		r.pools[name] = pool
	}

	r.signers = make(map[common.Address]*signer.Signer)
	if r.funder != nil {
		r.signers[r.funder.Address()] = r.funder
	}
	for _, pool := range r.pools {
		for _, s := range pool.All() {
			r.signers[s.Address()] = s
		}
	}
	for _, tmpl := range r.allTemplates() {
		if tmpl.FromAddr == "" {
			continue
		}
		s, err := signer.FromHexKey(tmpl.FromAddr)
		if err != nil {
			return err
		}
		r.signers[s.Address()] = s
	}

	r.contracts = registry.NewContractRegistry()
	r.refreshPlanner()

	r.nonces = spammer.NewNonceTracker()
	if err := r.resetNonces(ctx); err != nil {
		return err
	}

	r.pricer = gaspricer.New(r.chain, r.cfg.FixedGasPrice)
	if err := r.pricer.Refresh(ctx); err != nil {
		telemetry.Log.WithError(err).Warn("runner: initial gas price refresh failed")
	}

	r.dispatcher = spammer.NewDispatcher(r.chain, r.pricer, r.nonces, r.signers, spammer.Config{
		RunID:                r.runID,
		RPCBatchSize:         r.cfg.RPCBatchSize,
		MaxInFlight:          r.cfg.MaxInFlight,
		PeriodsPerGasRefresh: r.cfg.PeriodsPerGasRefresh,
		ChainID:              r.cfg.ChainID,
	})
	return nil
}

// allTemplates returns every TxTemplate the scenario references, across
// create, setup, and spam (tx or bundle) directives.
func (r *ScenarioRunner) allTemplates() []*scenario.TxTemplate {
	var out []*scenario.TxTemplate
	for i := range r.scen.Creates {
		out = append(out, &r.scen.Creates[i])
	}
	for i := range r.scen.Setups {
		out = append(out, &r.scen.Setups[i])
	}
	for _, step := range r.scen.Spam {
		if step.Template != nil {
			out = append(out, step.Template)
		}
		if step.Bundle != nil {
			for i := range step.Bundle.Templates {
				out = append(out, &step.Bundle.Templates[i])
			}
		}
	}
	return out
}

func (r *ScenarioRunner) refreshPlanner() {
	r.planner = scenario.NewPlanner(r.env, r.contracts.Snapshot(), r.scen.Label)
}

// resetNonces re-fetches every known signer's on-chain nonce (spec.md §4.5:
// "at step boundaries ... re-fetch on-chain nonces to recover from
// externally sent transactions"). If a signer already has an in-memory
// counter and the refetched nonce falls behind it, the chain's view of that
// account moved backwards relative to what contender itself issued, which
// only happens if something outside this run sent from the signer and the
// node re-orged away the transactions contender already assigned nonces
// for. That's reported as a NonceError rather than silently re-pinned.
func (r *ScenarioRunner) resetNonces(ctx context.Context) error {
	for addr := range r.signers {
		nonce, err := r.chain.NonceAt(ctx, addr)
		if err != nil {
			return err
		}
		if current, ok := r.nonces.Current(addr); ok && nonce < current {
			return cerrors.NewNonceError(addr.Hex(), current, nonce)
		}
		r.nonces.Reset(addr, nonce)
	}
	return nil
}

// resolveSignerAddr picks the signer address for tmpl: a pinned from_addr
// takes precedence over from_pool round-robin, falling back to the funder
// (mirrors generator.resolveSigner's precedence for the deploy/setup path,
// which draws one signer per directive rather than per generated tx).
func (r *ScenarioRunner) resolveSignerAddr(tmpl *scenario.TxTemplate) (common.Address, error) {
	if tmpl.FromAddr != "" {
		s, err := signer.FromHexKey(tmpl.FromAddr)
		if err != nil {
			return common.Address{}, err
		}
		return s.Address(), nil
	}
	if tmpl.FromPool == "" {
		if r.funder != nil {
			return r.funder.Address(), nil
		}
		return common.Address{}, cerrors.NewSignerError("resolve directive signer", errNoSignerSource)
	}
	pool, ok := r.pools[tmpl.FromPool]
	if !ok {
		return common.Address{}, cerrors.NewSignerError("resolve directive signer", errUnknownPool(tmpl.FromPool))
	}
	return pool.Next().Address(), nil
}

func (r *ScenarioRunner) submitPending(tx db.PendingTx) {
	tx.SentAt = time.Now()
	r.actor.Submit(tx)
}

// currentBlock fetches the latest block number from chain. Shared by
// ScenarioRunner.Run and CampaignRunner.runStage, neither of which has the
// other's receiver to hang a method off.
func currentBlock(ctx context.Context, chain Chain) (uint64, error) {
	header, err := chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

// runWithActor runs the TxActor for the duration of fn, draining it once fn
// returns (spec.md §4.4/§4.5 step 6: Finalize awaits TxActor drain). The
// head watch spans fn AND the drain that follows it: every phase that
// submits to the actor (Fund, Deploy, Setup, Spam) needs a live head feed,
// and so does drain's own receipt collection once fn has returned, so it
// cannot be torn down at the same moment fn exits.
func (r *ScenarioRunner) runWithActor(ctx context.Context, fn func(context.Context) error) error {
	actorCtx, cancelActor := context.WithCancel(context.Background())
	actorDone := make(chan error, 1)
	go func() { actorDone <- r.actor.Run(actorCtx) }()

	headsCtx, cancelHeads := context.WithCancel(context.Background())
	stopHeads := r.watchHeads(headsCtx)

	err := fn(ctx)

	cancelActor()
	drainErr := <-actorDone
	cancelHeads()
	stopHeads()

	if err == nil {
		err = drainErr
	}
	return err
}

// Run drives the full Load -> Fund -> Deploy -> Setup -> Spam -> Finalize
// lifecycle for a standalone scenario invocation, recording a Run row that
// spans the whole run.
func (r *ScenarioRunner) Run(ctx context.Context) error {
	startBlock, err := currentBlock(ctx, r.chain)
	if err != nil {
		return err
	}
	if r.ops != nil {
		if err := r.ops.CreateRun(ctx, db.Run{
			RunID:          r.runID,
			ScenarioName:   r.scen.Name,
			ScenarioLabel:  r.scen.Label,
			StartBlock:     startBlock,
			TxsPerDuration: r.cfg.Rate,
			Timeout:        r.cfg.SetupLandTimeout,
			RPCURL:         r.cfg.RPCURL,
		}); err != nil {
			return cerrors.NewDbError("create run", err)
		}
	}

	runErr := r.runWithActor(ctx, r.runPhases)

	if endBlock, err := currentBlock(context.Background(), r.chain); err == nil && r.ops != nil {
		_ = r.ops.UpdateRunEndBlock(context.Background(), r.runID, endBlock)
	}
	return runErr
}

func (r *ScenarioRunner) runPhases(ctx context.Context) error {
	if err := r.Load(ctx); err != nil {
		return err
	}
	if err := r.Fund(ctx); err != nil {
		return err
	}
	if err := r.Deploy(ctx); err != nil {
		return err
	}
	if err := r.Setup(ctx); err != nil {
		return err
	}
	if err := r.resetNonces(ctx); err != nil {
		return err
	}
	return r.Spam(ctx)
}

// SpamOnly runs Load then Spam only, touching no Run row — used by
// CampaignRunner, which owns a single Run record shared by every mix
// entry's ScenarioRunner in a stage (spec.md §4.6).
func (r *ScenarioRunner) SpamOnly(ctx context.Context) error {
	return r.runWithActor(ctx, func(ctx context.Context) error {
		if err := r.Load(ctx); err != nil {
			return err
		}
		return r.Spam(ctx)
	})
}

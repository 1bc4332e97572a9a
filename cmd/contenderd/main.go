// contenderd is a minimal demo CLI: it wires one hardcoded transfer
// scenario into a ScenarioRunner against a live JSON-RPC endpoint and
// prints the completion summary. It exists to exercise the core engine
// end-to-end, not as contender's eventual full TOML-driven entrypoint.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/flashbots/contender/internal/chain"
	"github.com/flashbots/contender/internal/config"
	"github.com/flashbots/contender/internal/db"
	"github.com/flashbots/contender/internal/gaspricer"
	"github.com/flashbots/contender/internal/randseed"
	"github.com/flashbots/contender/internal/report"
	"github.com/flashbots/contender/internal/runner"
	"github.com/flashbots/contender/internal/scenario"
	"github.com/flashbots/contender/internal/signer"
	"github.com/flashbots/contender/internal/telemetry"
)

func main() {
	app := &cli.App{
		Name:  "contenderd",
		Usage: "Run a load-generation scenario against an Ethereum-family JSON-RPC endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"r"},
				Value:   config.EnvOrDefault(config.EnvRPCURL, "http://127.0.0.1:8545"),
				Usage:   "JSON-RPC endpoint to spam",
			},
			&cli.StringFlag{
				Name:    "private-key",
				Aliases: []string{"k"},
				EnvVars: []string{config.EnvPrivateKey},
				Usage:   "Hex-encoded private key of the funder account",
			},
			&cli.Int64Flag{
				Name:  "chain-id",
				Value: 1,
				Usage: "Chain ID for transaction signing",
			},
			&cli.IntFlag{
				Name:  "rate",
				Value: 10,
				Usage: "Transactions per period",
			},
			&cli.IntFlag{
				Name:  "duration",
				Value: 10,
				Usage: "Number of periods to run (0 with --forever means run until interrupted)",
			},
			&cli.BoolFlag{
				Name:  "forever",
				Usage: "Run until interrupted instead of stopping after --duration periods",
			},
			&cli.StringFlag{
				Name:  "gas-price",
				Usage: "Fixed legacy gas price in wei; empty means track the latest block's basefee plus the suggested tip",
			},
			&cli.StringFlag{
				Name:  "seed",
				Value: config.EnvOrDefault(config.EnvSeed, "contenderd-demo"),
				Usage: "Master seed for deterministic signer derivation",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		telemetry.Log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpcURL := c.String("rpc-url")
	keyHex := c.String("private-key")
	if keyHex == "" {
		return cli.Exit("a funder private key is required (--private-key or CONTENDER_PRIVATE_KEY)", 1)
	}

	funder, err := signer.FromHexKey(keyHex)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid private key: %v", err), 1)
	}

	cl, err := chain.Dial(ctx, rpcURL, chain.DefaultRPCCallTimeout)
	if err != nil {
		return cli.Exit(fmt.Sprintf("dial %s: %v", rpcURL, err), 1)
	}
	defer cl.Close()

	var fixed *gaspricer.FixedPrice
	if s := c.String("gas-price"); s != "" {
		gp, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return cli.Exit(fmt.Sprintf("invalid --gas-price %q", s), 1)
		}
		fixed = &gaspricer.FixedPrice{GasPrice: gp}
	}

	memory := db.NewMemory()
	defer memory.Close()

	cfg := runner.Config{
		Rate:          c.Int("rate"),
		Duration:      c.Int("duration"),
		Forever:       c.Bool("forever"),
		ChainID:       big.NewInt(c.Int64("chain-id")),
		FixedGasPrice: fixed,
		RPCURL:        rpcURL,
		MinBalance:    big.NewInt(0),
	}

	src := randseed.Derive([32]byte{}, "contenderd", c.String("seed"))
	var seed [32]byte
	src.Bytes(seed[:])

	sr := runner.NewScenarioRunner(cl, memory, demoScenario(), funder, nil, seed, cfg)

	telemetry.Log.WithFields(map[string]any{
		"run_id": sr.RunID(),
		"rate":   cfg.Rate,
	}).Info("contenderd: starting run")

	runErr := sr.Run(ctx)

	summary := summarize(context.Background(), memory, sr.RunID())
	fmt.Println(summary.String())

	return runErr
}

// demoScenario is a single transfer-to-self spam step, drawn from a pool
// sized for the demo rather than any scenario file.
func demoScenario() *scenario.Scenario {
	return &scenario.Scenario{
		Name:  "demo-transfer",
		Label: "demo-transfer",
		Spam: []scenario.SpamStep{
			{Template: &scenario.TxTemplate{
				Kind:     scenario.KindSpamTx,
				FromPool: "senders",
				To:       "{_sender}",
				Value:    "0",
			}},
		},
	}
}

func summarize(ctx context.Context, ops db.Ops, runID string) *report.Summary {
	pending, err := ops.ListPendingTxs(ctx, runID)
	if err != nil {
		telemetry.Log.WithError(err).Warn("contenderd: list pending txs failed")
	}
	receipts, err := ops.ListReceipts(ctx, runID)
	if err != nil {
		telemetry.Log.WithError(err).Warn("contenderd: list receipts failed")
	}
	return report.FromReceipts(pending, receipts)
}

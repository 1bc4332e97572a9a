// Package runner implements the Scenario Runner and Campaign Runner
// (spec.md §4.5/§4.6): the per-run Load/Fund/Deploy/Setup/Spam/Finalize
// lifecycle, and the composition of multiple scenario runs into weighted
// campaign stages. It is the top-level assembly point wiring together
// scenario, generator, spammer, gaspricer, and txactor.
package runner

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashbots/contender/internal/gaspricer"
	"github.com/flashbots/contender/internal/spammer"
	"github.com/flashbots/contender/internal/txactor"
)

// Chain is the full RPC surface the runner needs: every method its
// constituent packages (gaspricer, spammer's dispatcher, the TxActor, and
// block-header subscription) already depend on individually, plus
// balance/nonce lookups for funding and nonce reset. A *chain.Client
// satisfies this without modification.
type Chain interface {
	gaspricer.Chain
	spammer.Chain
	spammer.HeadSubscriber
	txactor.Fetcher

	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	NonceAt(ctx context.Context, addr common.Address) (uint64, error)
}

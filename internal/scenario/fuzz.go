package scenario

import (
	"math/big"

	"github.com/flashbots/contender/internal/randseed"
)

// FuzzContext identifies one fuzz draw's position for deterministic
// derivation: (run_seed, step_index, tx_index, iteration) per spec.md §4.1.
type FuzzContext struct {
	RunSeed   [32]byte
	StepIndex int
	TxIndex   int
	Iteration int
}

// DrawFuzzValues draws one uniformly-random big.Int per fuzz param, seeded
// deterministically from the FuzzContext plus the param's own name (so two
// params fuzzed in the same tx don't draw the same sequence).
func DrawFuzzValues(ctx FuzzContext, params []FuzzParam) map[string]*big.Int {
	out := make(map[string]*big.Int, len(params))
	for _, p := range params {
		src := randseed.Derive(ctx.RunSeed,
			"fuzz",
			itoa(ctx.StepIndex), itoa(ctx.TxIndex), itoa(ctx.Iteration),
			p.Param,
		)
		min := p.Min
		max := p.Max
		if min == nil {
			min = big.NewInt(0)
		}
		if max == nil || max.Cmp(min) < 0 {
			max = min
		}
		out[p.Param] = drawBigInt(src, min, max)
	}
	return out
}

func drawBigInt(src *randseed.Source, min, max *big.Int) *big.Int {
	span := new(big.Int).Sub(max, min)
	span.Add(span, big.NewInt(1))
	if span.Sign() <= 0 {
		return new(big.Int).Set(min)
	}

	// Draw enough random bytes to cover span, reduce modulo span, add min.
	// Uses the deterministic byte stream from the derived Source so the
	// result is reproducible for a given FuzzContext.
	nbytes := (span.BitLen() + 7) / 8
	if nbytes == 0 {
		nbytes = 1
	}
	buf := make([]byte, nbytes+8) // oversample to reduce modulo bias
	src.Bytes(buf)

	raw := new(big.Int).SetBytes(buf)
	raw.Mod(raw, span)
	return raw.Add(raw, min)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

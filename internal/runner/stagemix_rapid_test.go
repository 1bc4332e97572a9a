package runner

import (
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/flashbots/contender/internal/scenario"
)

// TestPropertySplitRateSumsToTotal asserts splitRate's shares always sum
// back to exactly the requested total, for any total/n combination, since
// the last share absorbs integer-division remainder.
func TestPropertySplitRateSumsToTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(0, 1_000_000).Draw(t, "total")
		n := rapid.IntRange(1, 64).Draw(t, "n")

		out := splitRate(total, n)
		if len(out) != n {
			t.Fatalf("len(out) = %d, want %d", len(out), n)
		}
		sum := 0
		for _, v := range out {
			sum += v
		}
		if sum != total {
			t.Fatalf("sum(splitRate(%d, %d)) = %d, want %d", total, n, sum, total)
		}
	})
}

// TestPropertyNormalizeSharesSumsTo100 asserts spec.md §4.6's normalization
// invariant for any nonnegative, non-all-zero share vector.
func TestPropertyNormalizeSharesSumsTo100(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		shares := make([]float64, n)
		var total float64
		for i := range shares {
			shares[i] = rapid.Float64Range(0, 1000).Draw(t, "share")
			total += shares[i]
		}
		if total == 0 {
			shares[0] = 1 // force a nonzero sum; zero-sum is normalizeShares' documented no-op case
		}

		out := normalizeShares(shares)
		var sum float64
		for _, v := range out {
			sum += v
		}
		if math.Abs(sum-100) > 1e-6 {
			t.Fatalf("sum(normalizeShares(%v)) = %v, want 100", shares, sum)
		}
	})
}

// TestPropertySplitStageRatesSumsToTotalRate asserts a campaign stage's mix
// entries always partition the stage's full rate exactly, so no tx budget
// is silently dropped or double-counted across concurrent scenario runs.
func TestPropertySplitStageRatesSumsToTotalRate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(t, "n")
		totalRate := rapid.IntRange(0, 100_000).Draw(t, "totalRate")

		mix := make([]scenario.MixEntry, n)
		for i := range mix {
			mix[i] = scenario.MixEntry{
				Scenario: &scenario.Scenario{},
				SharePct: rapid.Float64Range(1, 100).Draw(t, "sharePct"),
			}
		}

		out := splitStageRates(mix, totalRate)
		if len(out) != n {
			t.Fatalf("len(out) = %d, want %d", len(out), n)
		}
		sum := 0
		for _, v := range out {
			sum += v
		}
		if sum != totalRate {
			t.Fatalf("sum(splitStageRates) = %d, want %d", sum, totalRate)
		}
	})
}

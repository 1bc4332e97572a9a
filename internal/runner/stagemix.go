package runner

import (
	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/scenario"
)

// splitRate divides total evenly across n shares, the last absorbing any
// remainder, so the shares always sum to exactly total.
func splitRate(total, n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	base := total / n
	for i := range out {
		out[i] = base
	}
	out[n-1] += total - base*n
	return out
}

// normalizeShares rescales shares so they sum to exactly 100, the last
// entry absorbing any rounding remainder (spec.md §4.6: "shares are
// normalized to sum to 100; the last mix entry absorbs rounding").
func normalizeShares(shares []float64) []float64 {
	var sum float64
	for _, s := range shares {
		sum += s
	}
	if sum <= 0 {
		return shares
	}
	out := make([]float64, len(shares))
	var running float64
	for i := 0; i < len(shares)-1; i++ {
		out[i] = shares[i] * 100 / sum
		running += out[i]
	}
	out[len(shares)-1] = 100 - running
	return out
}

// splitStageRates divides totalRate across a stage's mix entries in
// proportion to their normalized shares, last entry absorbing the
// remainder so the parts sum to exactly totalRate.
func splitStageRates(mix []scenario.MixEntry, totalRate int) []int {
	if len(mix) == 0 {
		return nil
	}
	raw := make([]float64, len(mix))
	for i, m := range mix {
		raw[i] = m.SharePct
	}
	shares := normalizeShares(raw)

	out := make([]int, len(mix))
	var assigned int
	for i := 0; i < len(mix)-1; i++ {
		out[i] = int(float64(totalRate) * shares[i] / 100)
		assigned += out[i]
	}
	out[len(mix)-1] = totalRate - assigned
	return out
}

// validateMix checks that a stage's mix doesn't pin the same override
// sender (from_addr) across more than one concurrently-run scenario, which
// would race two ScenarioRunners over one signer's nonce counter.
func validateMix(mix []scenario.MixEntry) error {
	seen := make(map[string]bool)
	for _, m := range mix {
		for _, tmpl := range allScenarioTemplates(m.Scenario) {
			if tmpl.FromAddr == "" {
				continue
			}
			if seen[tmpl.FromAddr] {
				return cerrors.SenderConflict(tmpl.FromAddr)
			}
			seen[tmpl.FromAddr] = true
		}
	}
	return nil
}

func allScenarioTemplates(s *scenario.Scenario) []*scenario.TxTemplate {
	var out []*scenario.TxTemplate
	for i := range s.Creates {
		out = append(out, &s.Creates[i])
	}
	for i := range s.Setups {
		out = append(out, &s.Setups[i])
	}
	for _, step := range s.Spam {
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

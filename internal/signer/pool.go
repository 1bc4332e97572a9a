package signer

import (
	"fmt"
	"sync/atomic"
)

// AgentPool is a named set of signers, sized at runtime so that
// signers_per_pool = ceil(tx_rate / num_pools). Signer i for pool p is
// derived from (seed, p, i), so the same seed yields the same pool
// (spec.md §3).
type AgentPool struct {
	name    string
	signers []*Signer

	// roundRobin is shared across every concurrent spam step that draws from
	// this pool, so concurrent steps sharing a pool don't collide on the
	// same signer slot at the same instant (spec.md §4.2).
	roundRobin atomic.Uint64
}

// NewAgentPool derives size signers for pool name from runSeed.
func NewAgentPool(runSeed [32]byte, name string, size int) (*AgentPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("agent pool %q: size must be positive, got %d", name, size)
	}
	signers := make([]*Signer, size)
	for i := 0; i < size; i++ {
		s, err := DeriveForPool(runSeed, name, i)
		if err != nil {
			return nil, err
		}
		signers[i] = s
	}
	return &AgentPool{name: name, signers: signers}, nil
}

// Name returns the pool's name.
func (p *AgentPool) Name() string { return p.name }

// Size returns the number of signers in the pool.
func (p *AgentPool) Size() int { return len(p.signers) }

// At returns the k-th signer in round-robin order (spec.md §4.2: "the k-th
// emitted tx uses signer p[k mod N]").
func (p *AgentPool) At(k int) *Signer {
	return p.signers[k%len(p.signers)]
}

// Next atomically advances the pool's shared counter and returns the next
// signer in round-robin order. Safe for concurrent steps sharing this pool.
func (p *AgentPool) Next() *Signer {
	k := p.roundRobin.Add(1) - 1
	return p.At(int(k % uint64(len(p.signers))))
}

// All returns every signer in the pool, in derivation order.
func (p *AgentPool) All() []*Signer {
	out := make([]*Signer, len(p.signers))
	copy(out, p.signers)
	return out
}

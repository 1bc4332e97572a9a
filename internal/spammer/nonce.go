package spammer

import (
	"sync"
	"sync/atomic"

	"github.com/antithesishq/antithesis-sdk-go/assert"
	"github.com/ethereum/go-ethereum/common"
)

// NonceTracker holds one atomic fetch-and-add counter per signer (spec.md
// §5: "nonce counters: one per signer; protected by an atomic
// fetch-and-add"). Init/Reset are used at step boundaries and on retry,
// where the runner re-fetches the on-chain nonce rather than trusting the
// in-memory count.
type NonceTracker struct {
	mu       sync.Mutex
	counters map[common.Address]*atomic.Uint64
	issued   map[common.Address]map[uint64]bool
}

// NewNonceTracker returns an empty tracker; counters are created lazily on
// first Init or Next.
func NewNonceTracker() *NonceTracker {
	return &NonceTracker{
		counters: make(map[common.Address]*atomic.Uint64),
		issued:   make(map[common.Address]map[uint64]bool),
	}
}

// Init pins addr's counter to nonce, overwriting any prior value, and
// forgets every nonce previously issued for addr: a fresh Init/Reset era
// starts the uniqueness check over.
func (n *NonceTracker) Init(addr common.Address, nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := new(atomic.Uint64)
	c.Store(nonce)
	n.counters[addr] = c
	delete(n.issued, addr)
}

// Reset re-pins addr's counter, for use after a retry or step boundary once
// the on-chain nonce has been re-fetched.
func (n *NonceTracker) Reset(addr common.Address, nonce uint64) {
	n.Init(addr, nonce)
}

// Current returns addr's counter value as of the last Init/Reset/Next call,
// and whether a counter has been created for addr at all.
func (n *NonceTracker) Current(addr common.Address) (uint64, bool) {
	n.mu.Lock()
	c, ok := n.counters[addr]
	n.mu.Unlock()
	if !ok {
		return 0, false
	}
	return c.Load(), true
}

// Next atomically returns addr's next nonce and advances the counter.
// Counters not yet Init'd start at zero. Every (addr, nonce) pair handed
// out by Next is asserted to be fresh since the last Init/Reset: a repeat
// means two callers raced past the per-signer dispatch lock.
func (n *NonceTracker) Next(addr common.Address) uint64 {
	n.mu.Lock()
	c, ok := n.counters[addr]
	if !ok {
		c = new(atomic.Uint64)
		n.counters[addr] = c
	}
	n.mu.Unlock()

	nonce := c.Add(1) - 1

	n.mu.Lock()
	seen, ok := n.issued[addr]
	if !ok {
		seen = make(map[uint64]bool)
		n.issued[addr] = seen
	}
	dup := seen[nonce]
	seen[nonce] = true
	n.mu.Unlock()

	assert.Always(!dup, "nonce is assigned at most once per signer", map[string]any{
		"signer": addr.Hex(),
		"nonce":  nonce,
	})
	return nonce
}

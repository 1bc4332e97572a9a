// Package registry implements ContractRegistry and EnvStore (spec.md §3):
// the deploy-time address table and the env-override table the Planner
// resolves placeholders against.
package registry

import (
	"fmt"
	"sync"
)

// ContractEntry is one deployed contract's registry record.
type ContractEntry struct {
	Address       string
	DeployTxHash  string
	RPCURL        string
	ScenarioLabel string
}

// key identifies a registry slot: a contract name scoped to an optional
// scenario label (spec.md §3: "assigned at most once per scenario_label").
type key struct {
	name  string
	label string
}

// ContractRegistry maps a user-assigned contract name (scoped to a scenario
// label) to its deployment record. Writes happen only during deploy
// (serial); reads during setup/spam are served from an immutable snapshot
// so concurrent generators never observe a registry mutation mid-read
// (spec.md §5).
type ContractRegistry struct {
	mu        sync.Mutex
	entries   map[key]ContractEntry
}

// NewContractRegistry returns an empty registry.
func NewContractRegistry() *ContractRegistry {
	return &ContractRegistry{entries: make(map[key]ContractEntry)}
}

// Assign records name -> entry under the given scenario label. Returns an
// error if name is already assigned for that label (spec.md §3 invariant:
// "assigned at most once per scenario_label").
func (r *ContractRegistry) Assign(name, label string, entry ContractEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{name: name, label: label}
	if _, exists := r.entries[k]; exists {
		return fmt.Errorf("contract %q already registered for scenario label %q", name, label)
	}
	r.entries[k] = entry
	return nil
}

// Snapshot returns a read-only, copy-on-write view safe to hand to
// concurrent generators/planners.
func (r *ContractRegistry) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := make(map[key]ContractEntry, len(r.entries))
	for k, v := range r.entries {
		cp[k] = v
	}
	return &Snapshot{entries: cp}
}

// Snapshot is an immutable point-in-time view of a ContractRegistry.
type Snapshot struct {
	entries map[key]ContractEntry
}

// Lookup returns the entry for name under label, or false if the name has
// never been assigned under that label. Reading before assignment is a hard
// error at the call site (the Planner turns a missed Lookup into
// ConfigError.UnknownPlaceholder); this method itself just reports presence.
func (s *Snapshot) Lookup(name, label string) (ContractEntry, bool) {
	e, ok := s.entries[key{name: name, label: label}]
	if !ok {
		// Fall back to the unscoped (no scenario label) registration, since
		// most scenarios never set a label.
		e, ok = s.entries[key{name: name, label: ""}]
	}
	return e, ok
}

package db

import (
	"context"
	"fmt"
	"sync"
)

type namedTxKey struct {
	runID string
	name  string
	label string
}

type pendingKey struct {
	runID string
	hash  string
}

// Memory is an in-memory Ops implementation used by tests and the demo
// entrypoint (spec.md §6). Its schemaVersion is fixed at construction so
// tests can simulate a stale-schema startup failure.
type Memory struct {
	mu            sync.Mutex
	schemaVersion int

	runs      map[string]Run
	namedTxs  map[namedTxKey]NamedTx
	pending   map[pendingKey]PendingTx
	receipts  map[pendingKey]Receipt
}

// NewMemory returns an empty Memory store at the current schema version.
func NewMemory() *Memory {
	return newMemoryWithVersion(SchemaVersion)
}

// NewMemoryWithSchemaVersion returns a Memory store pinned to version,
// for exercising the CheckSchema mismatch path.
func NewMemoryWithSchemaVersion(version int) *Memory {
	return newMemoryWithVersion(version)
}

func newMemoryWithVersion(version int) *Memory {
	return &Memory{
		schemaVersion: version,
		runs:          make(map[string]Run),
		namedTxs:      make(map[namedTxKey]NamedTx),
		pending:       make(map[pendingKey]PendingTx),
		receipts:      make(map[pendingKey]Receipt),
	}
}

// CheckSchema implements Ops.
func (m *Memory) CheckSchema(ctx context.Context) error {
	if m.schemaVersion != SchemaVersion {
		return ErrSchemaMismatch
	}
	return nil
}

// CreateRun implements Ops.
func (m *Memory) CreateRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.RunID] = run
	return nil
}

// UpdateRunEndBlock implements Ops.
func (m *Memory) UpdateRunEndBlock(ctx context.Context, runID string, endBlock uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("db: run %q not found", runID)
	}
	run.EndBlock = endBlock
	m.runs[runID] = run
	return nil
}

// GetRun implements Ops.
func (m *Memory) GetRun(ctx context.Context, runID string) (Run, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	return run, ok, nil
}

// ListRuns implements Ops.
func (m *Memory) ListRuns(ctx context.Context) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

// InsertNamedTx implements Ops.
func (m *Memory) InsertNamedTx(ctx context.Context, tx NamedTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namedTxs[namedTxKey{runID: tx.RunID, name: tx.Name, label: tx.ScenarioLabel}] = tx
	return nil
}

// GetNamedTx implements Ops.
func (m *Memory) GetNamedTx(ctx context.Context, runID, name, label string) (NamedTx, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.namedTxs[namedTxKey{runID: runID, name: name, label: label}]
	return tx, ok, nil
}

// InsertPendingTxs implements Ops.
func (m *Memory) InsertPendingTxs(ctx context.Context, txs []PendingTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		m.pending[pendingKey{runID: tx.RunID, hash: tx.Hash}] = tx
	}
	return nil
}

// DeletePendingTx implements Ops.
func (m *Memory) DeletePendingTx(ctx context.Context, runID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, pendingKey{runID: runID, hash: hash})
	return nil
}

// ListPendingTxs implements Ops.
func (m *Memory) ListPendingTxs(ctx context.Context, runID string) ([]PendingTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PendingTx, 0)
	for k, tx := range m.pending {
		if k.runID == runID {
			out = append(out, tx)
		}
	}
	return out, nil
}

// InsertReceipts implements Ops. Per spec.md §8, at most one receipt row may
// ever exist for a given (run_id, hash); a second insert for the same key
// overwrites rather than duplicates, matching "written at most once" intent
// at the storage layer (the txactor cache is what prevents double submission
// upstream).
func (m *Memory) InsertReceipts(ctx context.Context, receipts []Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range receipts {
		m.receipts[pendingKey{runID: r.RunID, hash: r.Hash}] = r
	}
	return nil
}

// ListReceipts implements Ops.
func (m *Memory) ListReceipts(ctx context.Context, runID string) ([]Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Receipt, 0)
	for k, r := range m.receipts {
		if k.runID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Close implements Ops. Memory holds no external resources.
func (m *Memory) Close() error { return nil }

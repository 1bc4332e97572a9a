// Package db defines contender's backend-agnostic persistence contract
// (spec.md §6 DbOps): CRUD for runs, named_txs, pending_txs, and receipts.
// The spamming-engine core depends only on the Ops interface; any backend
// that implements it — this package's in-memory Memory, or a SQLite/etc
// implementation living outside the core — is valid.
package db

import (
	"context"
	"errors"
	"time"
)

// SchemaVersion is the current record schema. A backend whose on-disk
// schema version differs must fail fast at startup (spec.md §6: "Schema
// version mismatch is a fatal startup error").
const SchemaVersion = 1

// ErrSchemaMismatch is returned by CheckSchema when a backend's persisted
// schema version does not match SchemaVersion.
var ErrSchemaMismatch = errors.New("db: schema version mismatch")

// Run is one spam-pipeline invocation (spec.md §3).
type Run struct {
	RunID          string
	ScenarioName   string
	ScenarioLabel  string
	CampaignName   string
	StageName      string
	StartBlock     uint64
	EndBlock       uint64
	TxsPerDuration int
	Duration       time.Duration
	Timeout        time.Duration
	RPCURL         string
}

// NamedTx records a deployed contract's registry entry for a run, mirroring
// registry.ContractEntry but persisted (spec.md §3 ContractRegistry).
type NamedTx struct {
	RunID         string
	Name          string
	Address       string
	DeployTxHash  string
	ScenarioLabel string
}

// PendingTx is recorded at dispatch time, before a receipt is known
// (spec.md §3).
type PendingTx struct {
	Hash      string
	Signer    string
	SentAt    time.Time
	RequestID string
	RunID     string
	Kind      string
	BundleID  string
}

// Receipt status values (spec.md §3: "status=reverted with
// error=\"execution reverted\" distinguishes revert from not-found").
const (
	StatusSuccess  = "success"
	StatusReverted = "reverted"
	StatusTimeout  = "timeout"
)

// Receipt is the landed (or timed-out) outcome of one PendingTx.
type Receipt struct {
	RunID       string
	Hash        string
	BlockNumber uint64
	BlockHash   string
	GasUsed     uint64
	Status      string
	Error       string
	LandedAt    time.Time
}

// Ops is the DbOps contract (spec.md §6). Every method is ctx-first and
// returns a plain error; callers wrap backend-specific failures in
// errors.DbError at the call site closest to the backend.
type Ops interface {
	CheckSchema(ctx context.Context) error

	CreateRun(ctx context.Context, run Run) error
	UpdateRunEndBlock(ctx context.Context, runID string, endBlock uint64) error
	GetRun(ctx context.Context, runID string) (Run, bool, error)
	ListRuns(ctx context.Context) ([]Run, error)

	InsertNamedTx(ctx context.Context, tx NamedTx) error
	GetNamedTx(ctx context.Context, runID, name, label string) (NamedTx, bool, error)

	InsertPendingTxs(ctx context.Context, txs []PendingTx) error
	DeletePendingTx(ctx context.Context, runID, hash string) error
	ListPendingTxs(ctx context.Context, runID string) ([]PendingTx, error)

	InsertReceipts(ctx context.Context, receipts []Receipt) error
	ListReceipts(ctx context.Context, runID string) ([]Receipt, error)

	Close() error
}

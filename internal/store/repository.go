package store

import (
	"context"
	"time"

	"github.com/zkUSD-Protocol/services/internal/domain/model"
)

// InsertResult describes the outcome of a dedup-keyed insert.
type InsertResult struct {
	Inserted bool // First insertion of this key; false means a duplicate was dropped.
}

// CheckpointRepository manages the singleton reconciliation watermark.
// Every operation is a single-row atomic statement; there is deliberately no
// multi-row transaction surface anywhere in the store.
type CheckpointRepository interface {
	// EnsureExists creates the singleton row at startBlock if it does not
	// exist yet. Safe to call on every startup.
	EnsureExists(ctx context.Context, startBlock uint32) error
	Get(ctx context.Context) (*model.Checkpoint, error)
	// SetInProgress flips the advisory crash marker that brackets each
	// reconciliation pass. It is not a lock.
	SetInProgress(ctx context.Context, inProgress bool) error
	// SetLastError records the last pass failure; an empty message clears it.
	SetLastError(ctx context.Context, message string) error
	// Advance moves the watermark. Heights only ever grow.
	Advance(ctx context.Context, height uint32, at time.Time) error
}

// RawEventRepository is the append-only event ledger, deduplicated on
// (transaction_hash, chain_status).
type RawEventRepository interface {
	FindByKey(ctx context.Context, txHash string, status model.ChainStatus) (*model.RawEvent, error)
	// Insert stores the event, dropping it silently when the dedup key
	// already exists (concurrent duplicate insert is safe).
	Insert(ctx context.Context, e *model.RawEvent) (InsertResult, error)
	// ListApplied returns the included, applied rows in replay order:
	// ascending block height, then slot, then insertion.
	ListApplied(ctx context.Context) ([]model.RawEvent, error)
}

// VaultRepository persists per-address vault aggregates.
type VaultRepository interface {
	FindByAddress(ctx context.Context, address string) (*model.VaultAggregate, error)
	Upsert(ctx context.Context, v *model.VaultAggregate) error
	Count(ctx context.Context) (int64, error)
	ListAddresses(ctx context.Context) ([]string, error)
}

// ProofRepository persists computed block proofs, keyed by block height.
type ProofRepository interface {
	Upsert(ctx context.Context, p *model.ProofRecord) error
	Latest(ctx context.Context) (*model.ProofRecord, error)
	FindByHeight(ctx context.Context, height uint32) (*model.ProofRecord, error)
}

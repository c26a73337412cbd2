package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zkUSD-Protocol/services/internal/domain/model"
	"github.com/zkUSD-Protocol/services/internal/store"
)

type CheckpointRepo struct {
	db *DB
}

func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

var _ store.CheckpointRepository = (*CheckpointRepo)(nil)

// EnsureExists seeds the checkpoint row if the table is empty. An existing
// row is left untouched, so a configured start block never overwrites
// progress already made.
func (r *CheckpointRepo) EnsureExists(ctx context.Context, startBlock uint32) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, last_processed_block, start_block, in_progress)
		VALUES ($1, 0, $2, FALSE)
		ON CONFLICT (id) DO NOTHING
	`, model.CheckpointID, startBlock)
	if err != nil {
		return fmt.Errorf("ensure checkpoint: %w", err)
	}
	return nil
}

func (r *CheckpointRepo) Get(ctx context.Context) (*model.Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var cp model.Checkpoint
	err := r.db.QueryRowContext(ctx, `
		SELECT id, last_processed_block, last_processed_at, start_block, in_progress, last_error, created_at, updated_at
		FROM checkpoints
		WHERE id = $1
	`, model.CheckpointID).Scan(
		&cp.ID,
		&cp.LastProcessedBlock,
		&cp.LastProcessedAt,
		&cp.StartBlock,
		&cp.InProgress,
		&cp.LastError,
		&cp.CreatedAt,
		&cp.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return &cp, nil
}

func (r *CheckpointRepo) SetInProgress(ctx context.Context, inProgress bool) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE checkpoints
		SET in_progress = $2, updated_at = now()
		WHERE id = $1
	`, model.CheckpointID, inProgress)
	if err != nil {
		return fmt.Errorf("set in_progress: %w", err)
	}
	return nil
}

// SetLastError records the most recent cycle failure. An empty message
// clears the column.
func (r *CheckpointRepo) SetLastError(ctx context.Context, message string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var lastErr sql.NullString
	if message != "" {
		lastErr = sql.NullString{String: message, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE checkpoints
		SET last_error = $2, updated_at = now()
		WHERE id = $1
	`, model.CheckpointID, lastErr)
	if err != nil {
		return fmt.Errorf("set last_error: %w", err)
	}
	return nil
}

// Advance moves the watermark to height. The WHERE guard keeps the
// watermark monotonic even if a stale caller races a newer one.
func (r *CheckpointRepo) Advance(ctx context.Context, height uint32, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE checkpoints
		SET last_processed_block = $2, last_processed_at = $3, updated_at = now()
		WHERE id = $1 AND last_processed_block <= $2
	`, model.CheckpointID, height, at)
	if err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	return nil
}

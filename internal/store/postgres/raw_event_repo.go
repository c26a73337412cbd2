package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/zkUSD-Protocol/services/internal/domain/model"
	"github.com/zkUSD-Protocol/services/internal/store"
)

type RawEventRepo struct {
	db *DB
}

func NewRawEventRepo(db *DB) *RawEventRepo {
	return &RawEventRepo{db: db}
}

var _ store.RawEventRepository = (*RawEventRepo)(nil)

func (r *RawEventRepo) FindByKey(ctx context.Context, txHash string, status model.ChainStatus) (*model.RawEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var e model.RawEvent
	err := r.db.QueryRowContext(ctx, `
		SELECT id, block_height, block_hash, parent_block_hash, global_slot, chain_status,
		       event_type, payload, transaction_hash, transaction_status, transaction_memo, created_at
		FROM raw_events
		WHERE transaction_hash = $1 AND chain_status = $2
	`, txHash, status).Scan(
		&e.ID,
		&e.BlockHeight,
		&e.BlockHash,
		&e.ParentBlockHash,
		&e.GlobalSlot,
		&e.ChainStatus,
		&e.EventType,
		&e.Payload,
		&e.TransactionHash,
		&e.TxStatus,
		&e.TxMemo,
		&e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find raw event: %w", err)
	}
	return &e, nil
}

// ListApplied returns the rows the reducer would have applied, in the order
// it would have applied them. Used by the integrity audit to replay the
// ledger from scratch.
func (r *RawEventRepo) ListApplied(ctx context.Context) ([]model.RawEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, LongQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, block_height, block_hash, parent_block_hash, global_slot, chain_status,
		       event_type, payload, transaction_hash, transaction_status, transaction_memo, created_at
		FROM raw_events
		WHERE chain_status = $1 AND transaction_status = $2
		ORDER BY block_height ASC, global_slot ASC, created_at ASC
	`, model.ChainStatusIncluded, model.TxStatusApplied)
	if err != nil {
		return nil, fmt.Errorf("list applied raw events: %w", err)
	}
	defer rows.Close()

	var out []model.RawEvent
	for rows.Next() {
		var e model.RawEvent
		if err := rows.Scan(
			&e.ID,
			&e.BlockHeight,
			&e.BlockHash,
			&e.ParentBlockHash,
			&e.GlobalSlot,
			&e.ChainStatus,
			&e.EventType,
			&e.Payload,
			&e.TransactionHash,
			&e.TxStatus,
			&e.TxMemo,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan raw event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw events: %w", err)
	}
	return out, nil
}

// Insert appends an observation to the ledger. The (transaction_hash,
// chain_status) unique constraint absorbs duplicate deliveries; a
// pending -> included transition lands as a second row, never an update.
func (r *RawEventRepo) Insert(ctx context.Context, e *model.RawEvent) (store.InsertResult, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO raw_events (
			id, block_height, block_hash, parent_block_hash, global_slot, chain_status,
			event_type, payload, transaction_hash, transaction_status, transaction_memo
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (transaction_hash, chain_status) DO NOTHING
	`,
		e.ID,
		e.BlockHeight,
		e.BlockHash,
		e.ParentBlockHash,
		e.GlobalSlot,
		e.ChainStatus,
		e.EventType,
		e.Payload,
		e.TransactionHash,
		e.TxStatus,
		e.TxMemo,
	)
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("insert raw event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("insert raw event rows affected: %w", err)
	}
	return store.InsertResult{Inserted: n > 0}, nil
}

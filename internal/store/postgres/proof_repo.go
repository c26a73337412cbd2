package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/zkUSD-Protocol/services/internal/domain/model"
	"github.com/zkUSD-Protocol/services/internal/store"
)

type ProofRepo struct {
	db *DB
}

func NewProofRepo(db *DB) *ProofRepo {
	return &ProofRepo{db: db}
}

var _ store.ProofRepository = (*ProofRepo)(nil)

// Upsert stores the proof for a block height. Recomputing a height after a
// partial failure overwrites the previous record.
func (r *ProofRepo) Upsert(ctx context.Context, p *model.ProofRecord) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO proofs (id, block_height, proof, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (block_height) DO UPDATE SET
			proof = EXCLUDED.proof,
			price = EXCLUDED.price,
			created_at = now()
	`, p.ID, p.BlockHeight, p.Proof, p.Price)
	if err != nil {
		return fmt.Errorf("upsert proof: %w", err)
	}
	return nil
}

func (r *ProofRepo) Latest(ctx context.Context) (*model.ProofRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var p model.ProofRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, block_height, proof, price, created_at
		FROM proofs
		ORDER BY block_height DESC
		LIMIT 1
	`).Scan(&p.ID, &p.BlockHeight, &p.Proof, &p.Price, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest proof: %w", err)
	}
	return &p, nil
}

func (r *ProofRepo) FindByHeight(ctx context.Context, height uint32) (*model.ProofRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var p model.ProofRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, block_height, proof, price, created_at
		FROM proofs
		WHERE block_height = $1
	`, height).Scan(&p.ID, &p.BlockHeight, &p.Proof, &p.Price, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find proof: %w", err)
	}
	return &p, nil
}

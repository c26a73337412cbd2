package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zkUSD-Protocol/services/internal/domain/model"
	"github.com/zkUSD-Protocol/services/internal/store"
)

type VaultRepo struct {
	db *DB
}

func NewVaultRepo(db *DB) *VaultRepo {
	return &VaultRepo{db: db}
}

var _ store.VaultRepository = (*VaultRepo)(nil)

func (r *VaultRepo) FindByAddress(ctx context.Context, address string) (*model.VaultAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var v model.VaultAggregate
	err := r.db.QueryRowContext(ctx, `
		SELECT address, owner, collateral_amount, debt_amount,
		       last_update_block, last_update_at, latest_transaction_hash, created_at, updated_at
		FROM vaults
		WHERE address = $1
	`, address).Scan(
		&v.Address,
		&v.Owner,
		&v.CollateralAmount,
		&v.DebtAmount,
		&v.LastUpdateBlock,
		&v.LastUpdateAt,
		&v.LatestTxHash,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find vault: %w", err)
	}
	return &v, nil
}

// Upsert writes the full aggregate state. Amounts are absolute snapshots,
// so the update replaces rather than accumulates.
func (r *VaultRepo) Upsert(ctx context.Context, v *model.VaultAggregate) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vaults (
			address, owner, collateral_amount, debt_amount,
			last_update_block, last_update_at, latest_transaction_hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address) DO UPDATE SET
			owner = EXCLUDED.owner,
			collateral_amount = EXCLUDED.collateral_amount,
			debt_amount = EXCLUDED.debt_amount,
			last_update_block = EXCLUDED.last_update_block,
			last_update_at = EXCLUDED.last_update_at,
			latest_transaction_hash = EXCLUDED.latest_transaction_hash,
			updated_at = now()
	`,
		v.Address,
		v.Owner,
		v.CollateralAmount,
		v.DebtAmount,
		v.LastUpdateBlock,
		v.LastUpdateAt,
		v.LatestTxHash,
	)
	if err != nil {
		return fmt.Errorf("upsert vault: %w", err)
	}
	return nil
}

func (r *VaultRepo) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vaults`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count vaults: %w", err)
	}
	return n, nil
}

func (r *VaultRepo) ListAddresses(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, LongQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT address FROM vaults ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("list vault addresses: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan vault address: %w", err)
		}
		out = append(out, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vault addresses: %w", err)
	}
	return out, nil
}

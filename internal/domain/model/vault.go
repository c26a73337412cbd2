package model

import "time"

// VaultAggregate is the derived per-address vault state. Events carry
// absolute resulting amounts, so the reducer replaces rather than
// accumulates. LatestTransactionHash and LastUpdateBlock guard replay:
// an event whose hash matches the stored hash, or whose block is older
// than the last applied block, is a no-op.
type VaultAggregate struct {
	Address          string    `db:"address"`
	Owner            string    `db:"owner"`
	CollateralAmount string    `db:"collateral_amount"`
	DebtAmount       string    `db:"debt_amount"`
	LastUpdateBlock  uint32    `db:"last_update_block"`
	LastUpdateAt     time.Time `db:"last_update_at"`
	LatestTxHash     string    `db:"latest_transaction_hash"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

const zeroAmount = "0"

// NewVaultAggregate returns an empty vault for address owned by owner.
func NewVaultAggregate(address, owner string) *VaultAggregate {
	return &VaultAggregate{
		Address:          address,
		Owner:            owner,
		CollateralAmount: zeroAmount,
		DebtAmount:       zeroAmount,
	}
}

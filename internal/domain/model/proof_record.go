package model

import (
	"time"

	"github.com/google/uuid"
)

// ProofRecord is one computed block proof. Keyed by BlockHeight: a cycle that
// recomputes a block after an earlier persist failure overwrites the row
// instead of violating uniqueness.
type ProofRecord struct {
	ID          uuid.UUID `db:"id"`
	BlockHeight uint32    `db:"block_height"`
	Proof       []byte    `db:"proof"`
	Price       string    `db:"price"`
	CreatedAt   time.Time `db:"created_at"`
}

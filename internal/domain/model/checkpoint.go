package model

import "time"

// CheckpointID is the fixed key of the singleton checkpoint row.
const CheckpointID = 1

// Checkpoint is the reconciliation watermark. Exactly one row exists; it is
// created at the configured start height and mutated only by the reconciler,
// which brackets every pass with InProgress true -> false.
//
// LastProcessedBlock == 0 means the watermark has never advanced; the first
// pass reconciles from StartBlock.
type Checkpoint struct {
	ID                 int        `db:"id"`
	LastProcessedBlock uint32     `db:"last_processed_block"`
	LastProcessedAt    *time.Time `db:"last_processed_at"`
	StartBlock         uint32     `db:"start_block"`
	InProgress         bool       `db:"in_progress"`
	LastError          *string    `db:"last_error"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// FromBlock is the height the next reconciliation pass starts at.
func (c *Checkpoint) FromBlock() uint32 {
	if c.LastProcessedBlock == 0 {
		return c.StartBlock
	}
	return c.LastProcessedBlock
}

package event

import "time"

// CycleRecord summarizes one completed processing cycle. Published to the
// feed transport after the cycle's proof and reconciliation both land, for
// downstream consumers (dashboards, settlement jobs).
type CycleRecord struct {
	BlockHeight    uint32    `json:"block_height"`
	Price          string    `json:"price"`
	EventsIngested int       `json:"events_ingested"`
	UpdatedVaults  []string  `json:"updated_vaults"`
	CompletedAt    time.Time `json:"completed_at"`
}

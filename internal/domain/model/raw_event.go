package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeNewVault          EventType = "NewVault"
	EventTypeVaultOwnerUpdated EventType = "VaultOwnerUpdated"
	EventTypeDepositCollateral EventType = "DepositCollateral"
	EventTypeRedeemCollateral  EventType = "RedeemCollateral"
	EventTypeMintZkUsd         EventType = "MintZkUsd"
	EventTypeBurnZkUsd         EventType = "BurnZkUsd"
	EventTypeLiquidate         EventType = "Liquidate"
)

// vaultEventTypes is the set of event types that feed the vault reducer.
// Anything else is recorded in the ledger but never touches vault state.
var vaultEventTypes = map[EventType]bool{
	EventTypeNewVault:          true,
	EventTypeVaultOwnerUpdated: true,
	EventTypeDepositCollateral: true,
	EventTypeRedeemCollateral:  true,
	EventTypeMintZkUsd:         true,
	EventTypeBurnZkUsd:         true,
	EventTypeLiquidate:         true,
}

func (t EventType) IsVaultEvent() bool {
	return vaultEventTypes[t]
}

func (t EventType) String() string {
	return string(t)
}

// RawEvent is one observed chain event. Rows are unique on
// (TransactionHash, ChainStatus): re-observing the same transaction under the
// same status is a duplicate, while a status transition produces a second row.
// Rows are immutable once written.
type RawEvent struct {
	ID              uuid.UUID       `db:"id"`
	BlockHeight     uint32          `db:"block_height"`
	BlockHash       string          `db:"block_hash"`
	ParentBlockHash string          `db:"parent_block_hash"`
	GlobalSlot      uint32          `db:"global_slot"`
	ChainStatus     ChainStatus     `db:"chain_status"`
	EventType       EventType       `db:"event_type"`
	Payload         json.RawMessage `db:"payload"`
	TransactionHash string          `db:"transaction_hash"`
	TxStatus        TxStatus        `db:"transaction_status"`
	TxMemo          string          `db:"transaction_memo"`
	CreatedAt       time.Time       `db:"created_at"`
}

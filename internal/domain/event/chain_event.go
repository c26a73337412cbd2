package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zkUSD-Protocol/services/internal/domain/model"
)

// ChainEvent is one event observed from the chain, in flight between the
// chain reader and the reconciler. Raw holds the payload exactly as observed
// (that is what the ledger stores); Payload is the decoded form for events in
// the vault set, nil otherwise.
type ChainEvent struct {
	BlockHeight     uint32
	BlockHash       string
	ParentBlockHash string
	GlobalSlot      uint32
	ChainStatus     model.ChainStatus
	Type            model.EventType
	Payload         VaultPayload
	Raw             json.RawMessage
	TransactionHash string
	TxStatus        model.TxStatus
	TxMemo          string
	Timestamp       time.Time
}

// VaultPayload is the closed set of decoded vault event payloads. Every
// variant names the vault it targets; the reducer dispatches on the concrete
// type and the compiler keeps the dispatch exhaustive via isVaultPayload.
type VaultPayload interface {
	Vault() string
	isVaultPayload()
}

type NewVault struct {
	VaultAddress string `json:"vaultAddress"`
	Owner        string `json:"owner"`
}

type VaultOwnerUpdated struct {
	VaultAddress string `json:"vaultAddress"`
	NewOwner     string `json:"newOwner"`
	PrevOwner    string `json:"previousOwner"`
}

type DepositCollateral struct {
	VaultAddress          string `json:"vaultAddress"`
	AmountDeposited       string `json:"amountDeposited"`
	VaultCollateralAmount string `json:"vaultCollateralAmount"`
	VaultDebtAmount       string `json:"vaultDebtAmount"`
}

type RedeemCollateral struct {
	VaultAddress          string `json:"vaultAddress"`
	AmountRedeemed        string `json:"amountRedeemed"`
	VaultCollateralAmount string `json:"vaultCollateralAmount"`
	VaultDebtAmount       string `json:"vaultDebtAmount"`
}

type MintZkUsd struct {
	VaultAddress          string `json:"vaultAddress"`
	AmountMinted          string `json:"amountMinted"`
	VaultCollateralAmount string `json:"vaultCollateralAmount"`
	VaultDebtAmount       string `json:"vaultDebtAmount"`
}

type BurnZkUsd struct {
	VaultAddress          string `json:"vaultAddress"`
	AmountBurned          string `json:"amountBurned"`
	VaultCollateralAmount string `json:"vaultCollateralAmount"`
	VaultDebtAmount       string `json:"vaultDebtAmount"`
}

type Liquidate struct {
	VaultAddress string `json:"vaultAddress"`
	Liquidator   string `json:"liquidator"`
}

func (p *NewVault) Vault() string          { return p.VaultAddress }
func (p *VaultOwnerUpdated) Vault() string { return p.VaultAddress }
func (p *DepositCollateral) Vault() string { return p.VaultAddress }
func (p *RedeemCollateral) Vault() string  { return p.VaultAddress }
func (p *MintZkUsd) Vault() string         { return p.VaultAddress }
func (p *BurnZkUsd) Vault() string         { return p.VaultAddress }
func (p *Liquidate) Vault() string         { return p.VaultAddress }

func (*NewVault) isVaultPayload()          {}
func (*VaultOwnerUpdated) isVaultPayload() {}
func (*DepositCollateral) isVaultPayload() {}
func (*RedeemCollateral) isVaultPayload()  {}
func (*MintZkUsd) isVaultPayload()         {}
func (*BurnZkUsd) isVaultPayload()         {}
func (*Liquidate) isVaultPayload()         {}

// ParsePayload decodes raw into the typed payload for t. Event types outside
// the vault set decode to (nil, nil): they stay ledger-only.
func ParsePayload(t model.EventType, raw json.RawMessage) (VaultPayload, error) {
	if !t.IsVaultEvent() {
		return nil, nil
	}

	decode := func(dst VaultPayload) (VaultPayload, error) {
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return dst, nil
	}

	var p VaultPayload
	var err error
	switch t {
	case model.EventTypeNewVault:
		p, err = decode(&NewVault{})
	case model.EventTypeVaultOwnerUpdated:
		p, err = decode(&VaultOwnerUpdated{})
	case model.EventTypeDepositCollateral:
		p, err = decode(&DepositCollateral{})
	case model.EventTypeRedeemCollateral:
		p, err = decode(&RedeemCollateral{})
	case model.EventTypeMintZkUsd:
		p, err = decode(&MintZkUsd{})
	case model.EventTypeBurnZkUsd:
		p, err = decode(&BurnZkUsd{})
	case model.EventTypeLiquidate:
		p, err = decode(&Liquidate{})
	default:
		return nil, fmt.Errorf("vault event type %q has no payload decoder", t)
	}
	if err != nil {
		return nil, err
	}
	if p.Vault() == "" {
		return nil, fmt.Errorf("%s payload missing vaultAddress", t)
	}
	return p, nil
}

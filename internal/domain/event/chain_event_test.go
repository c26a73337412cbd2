package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkUSD-Protocol/services/internal/domain/model"
)

func TestParsePayload_AllVaultTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		eventType model.EventType
		raw       string
		want      VaultPayload
	}{
		{
			name:      "new vault",
			eventType: model.EventTypeNewVault,
			raw:       `{"vaultAddress":"B62vault1","owner":"B62owner1"}`,
			want:      &NewVault{VaultAddress: "B62vault1", Owner: "B62owner1"},
		},
		{
			name:      "owner updated",
			eventType: model.EventTypeVaultOwnerUpdated,
			raw:       `{"vaultAddress":"B62vault1","newOwner":"B62owner2","previousOwner":"B62owner1"}`,
			want:      &VaultOwnerUpdated{VaultAddress: "B62vault1", NewOwner: "B62owner2", PrevOwner: "B62owner1"},
		},
		{
			name:      "deposit collateral",
			eventType: model.EventTypeDepositCollateral,
			raw:       `{"vaultAddress":"B62vault1","amountDeposited":"50","vaultCollateralAmount":"50","vaultDebtAmount":"0"}`,
			want: &DepositCollateral{
				VaultAddress:          "B62vault1",
				AmountDeposited:       "50",
				VaultCollateralAmount: "50",
				VaultDebtAmount:       "0",
			},
		},
		{
			name:      "redeem collateral",
			eventType: model.EventTypeRedeemCollateral,
			raw:       `{"vaultAddress":"B62vault1","amountRedeemed":"10","vaultCollateralAmount":"40","vaultDebtAmount":"0"}`,
			want: &RedeemCollateral{
				VaultAddress:          "B62vault1",
				AmountRedeemed:        "10",
				VaultCollateralAmount: "40",
				VaultDebtAmount:       "0",
			},
		},
		{
			name:      "mint zkusd",
			eventType: model.EventTypeMintZkUsd,
			raw:       `{"vaultAddress":"B62vault1","amountMinted":"25","vaultCollateralAmount":"40","vaultDebtAmount":"25"}`,
			want: &MintZkUsd{
				VaultAddress:          "B62vault1",
				AmountMinted:          "25",
				VaultCollateralAmount: "40",
				VaultDebtAmount:       "25",
			},
		},
		{
			name:      "burn zkusd",
			eventType: model.EventTypeBurnZkUsd,
			raw:       `{"vaultAddress":"B62vault1","amountBurned":"5","vaultCollateralAmount":"40","vaultDebtAmount":"20"}`,
			want: &BurnZkUsd{
				VaultAddress:          "B62vault1",
				AmountBurned:          "5",
				VaultCollateralAmount: "40",
				VaultDebtAmount:       "20",
			},
		},
		{
			name:      "liquidate",
			eventType: model.EventTypeLiquidate,
			raw:       `{"vaultAddress":"B62vault1","liquidator":"B62liq1"}`,
			want:      &Liquidate{VaultAddress: "B62vault1", Liquidator: "B62liq1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePayload(tt.eventType, json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "B62vault1", got.Vault())
		})
	}
}

func TestParsePayload_NonVaultTypeIsLedgerOnly(t *testing.T) {
	t.Parallel()

	got, err := ParsePayload(model.EventType("PriceFeedUpdate"), json.RawMessage(`{"anything":1}`))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParsePayload_MalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := ParsePayload(model.EventTypeNewVault, json.RawMessage(`{"vaultAddress":`))
	require.Error(t, err)
}

func TestParsePayload_MissingVaultAddress(t *testing.T) {
	t.Parallel()

	_, err := ParsePayload(model.EventTypeDepositCollateral, json.RawMessage(`{"vaultCollateralAmount":"50"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vaultAddress")
}

package mina

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkUSD-Protocol/services/internal/chain/ratelimit"
	"github.com/zkUSD-Protocol/services/internal/domain/event"
	"github.com/zkUSD-Protocol/services/internal/domain/model"
)

func newTestAdapter(handler func(*http.Request) (*http.Response, error)) *Adapter {
	client := newTestClient(handler)
	limiter := ratelimit.NewLimiter(1000, 100, "test")
	return NewAdapter(client, limiter, "B62qfactory", slog.Default())
}

func TestAdapter_FetchEvents_OrdersAndMaps(t *testing.T) {
	adapter := newTestAdapter(func(r *http.Request) (*http.Response, error) {
		// Archive responds newest-first; the adapter must re-order.
		return jsonHTTPResponse(http.StatusOK, `{"data": {"events": [
			{
				"blockInfo": {
					"height": 103,
					"stateHash": "3NKlater",
					"parentHash": "3NKmid",
					"globalSlotSinceGenesis": 206,
					"chainStatus": "pending",
					"timestamp": "1724630500000"
				},
				"eventData": [
					{
						"type": "MintZkUsd",
						"data": {"vaultAddress": "B62qvault", "amountMinted": "7", "vaultCollateralAmount": "50", "vaultDebtAmount": "7"},
						"transactionInfo": {"hash": "5JuMint", "memo": "", "status": "applied"}
					}
				]
			},
			{
				"blockInfo": {
					"height": 101,
					"stateHash": "3NKearlier",
					"parentHash": "3NKparent",
					"globalSlotSinceGenesis": 202,
					"chainStatus": "canonical",
					"timestamp": "1724630400000"
				},
				"eventData": [
					{
						"type": "NewVault",
						"data": {"vaultAddress": "B62qvault", "owner": "B62qowner"},
						"transactionInfo": {"hash": "5JuCreate", "memo": "vault", "status": "applied"}
					}
				]
			}
		]}}`), nil
	})

	events, err := adapter.FetchEvents(context.Background(), 100, 105)
	require.NoError(t, err)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, uint32(101), first.BlockHeight)
	assert.Equal(t, model.ChainStatusIncluded, first.ChainStatus, "canonical maps to included")
	assert.Equal(t, model.EventTypeNewVault, first.Type)
	assert.Equal(t, "5JuCreate", first.TransactionHash)
	assert.Equal(t, "vault", first.TxMemo)
	assert.Equal(t, time.UnixMilli(1724630400000).UTC(), first.Timestamp)

	payload, ok := first.Payload.(*event.NewVault)
	require.True(t, ok)
	assert.Equal(t, "B62qvault", payload.VaultAddress)
	assert.Equal(t, "B62qowner", payload.Owner)

	second := events[1]
	assert.Equal(t, uint32(103), second.BlockHeight)
	assert.Equal(t, model.ChainStatusPending, second.ChainStatus)
	assert.Equal(t, model.EventTypeMintZkUsd, second.Type)
}

func TestAdapter_FetchEvents_SkipsOrphanedBlocks(t *testing.T) {
	adapter := newTestAdapter(func(r *http.Request) (*http.Response, error) {
		return jsonHTTPResponse(http.StatusOK, `{"data": {"events": [
			{
				"blockInfo": {
					"height": 102,
					"stateHash": "3NKorphan",
					"parentHash": "3NKparent",
					"globalSlotSinceGenesis": 204,
					"chainStatus": "orphaned",
					"timestamp": "1724630450000"
				},
				"eventData": [
					{
						"type": "NewVault",
						"data": {"vaultAddress": "B62qorphanvault", "owner": "B62qowner"},
						"transactionInfo": {"hash": "5JuOrphan", "memo": "", "status": "applied"}
					}
				]
			}
		]}}`), nil
	})

	events, err := adapter.FetchEvents(context.Background(), 100, 105)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAdapter_FetchEvents_MalformedPayloadFails(t *testing.T) {
	adapter := newTestAdapter(func(r *http.Request) (*http.Response, error) {
		return jsonHTTPResponse(http.StatusOK, `{"data": {"events": [
			{
				"blockInfo": {
					"height": 101,
					"stateHash": "3NKhead",
					"parentHash": "3NKparent",
					"globalSlotSinceGenesis": 202,
					"chainStatus": "canonical",
					"timestamp": "1724630400000"
				},
				"eventData": [
					{
						"type": "NewVault",
						"data": {"owner": "B62qowner"},
						"transactionInfo": {"hash": "5JuBad", "memo": "", "status": "applied"}
					}
				]
			}
		]}}`), nil
	})

	_, err := adapter.FetchEvents(context.Background(), 100, 105)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5JuBad")
}

func TestAdapter_GetHeadHeight(t *testing.T) {
	adapter := newTestAdapter(func(r *http.Request) (*http.Response, error) {
		return jsonHTTPResponse(http.StatusOK, `{
			"data": {"bestChain": [{"protocolState": {"consensusState": {"blockHeight": "12345", "slotSinceGenesis": "24690"}}}]}
		}`), nil
	})

	height, err := adapter.GetHeadHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(12345), height)
}

func TestAdapter_GetHeadHeight_RetriesTransientFailures(t *testing.T) {
	var calls int
	adapter := newTestAdapter(func(r *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return jsonHTTPResponse(http.StatusServiceUnavailable, `upstream maintenance`), nil
		}
		return jsonHTTPResponse(http.StatusOK, `{
			"data": {"bestChain": [{"protocolState": {"consensusState": {"blockHeight": "500", "slotSinceGenesis": "1000"}}}]}
		}`), nil
	})

	height, err := adapter.GetHeadHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(500), height)
	assert.Equal(t, 3, calls)
}

func TestAdapter_FetchEvents_NoRetryOnTerminalFailure(t *testing.T) {
	var calls int
	adapter := newTestAdapter(func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonHTTPResponse(http.StatusOK, `{"errors": [{"message": "Cannot query field \"events\" on type \"query\""}]}`), nil
	})

	_, err := adapter.FetchEvents(context.Background(), 100, 105)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestMapChainStatus(t *testing.T) {
	t.Parallel()

	status, ok := mapChainStatus("canonical")
	require.True(t, ok)
	assert.Equal(t, model.ChainStatusIncluded, status)

	status, ok = mapChainStatus("PENDING")
	require.True(t, ok)
	assert.Equal(t, model.ChainStatusPending, status)

	_, ok = mapChainStatus("orphaned")
	assert.False(t, ok)
}

func TestMapTxStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.TxStatusApplied, mapTxStatus("applied"))
	assert.Equal(t, model.TxStatusFailed, mapTxStatus("FAILED"))
	assert.Equal(t, model.TxStatusApplied, mapTxStatus(""))
}

package mina

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zkUSD-Protocol/services/internal/chain"
	"github.com/zkUSD-Protocol/services/internal/chain/ratelimit"
	"github.com/zkUSD-Protocol/services/internal/chain/retry"
	"github.com/zkUSD-Protocol/services/internal/domain/event"
	"github.com/zkUSD-Protocol/services/internal/domain/model"
)

const (
	queryMaxAttempts = 3
	queryRetryDelay  = 200 * time.Millisecond
)

// Adapter implements chain.Adapter against a Mina daemon and archive pair.
// It tracks the events of a single contract account.
type Adapter struct {
	client          *Client
	limiter         *ratelimit.Limiter
	contractAddress string
	logger          *slog.Logger
}

var _ chain.Adapter = (*Adapter)(nil)

func NewAdapter(client *Client, limiter *ratelimit.Limiter, contractAddress string, logger *slog.Logger) *Adapter {
	return &Adapter{
		client:          client,
		limiter:         limiter,
		contractAddress: contractAddress,
		logger:          logger.With("component", "mina_adapter"),
	}
}

// withRetry runs call up to queryMaxAttempts times, backing off between
// attempts while the failure still classifies as transient.
func (a *Adapter) withRetry(ctx context.Context, op string, call func() error) error {
	for attempt := 1; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		decision := retry.Classify(err)
		if !decision.IsTransient() || attempt >= queryMaxAttempts {
			return err
		}
		a.logger.Debug("retrying chain query",
			"op", op,
			"attempt", attempt,
			"reason", decision.Reason,
			"error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * queryRetryDelay):
		}
	}
}

func (a *Adapter) GetHeadHeight(ctx context.Context) (uint32, error) {
	var height uint32
	err := a.withRetry(ctx, "bestChain", func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		h, err := a.client.GetBestChainHeight(ctx)
		ratelimit.RecordRPCCall("node", "bestChain", err)
		height = h
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("head height: %w", err)
	}
	return height, nil
}

func (a *Adapter) FetchEvents(ctx context.Context, fromBlock, toBlock uint32) ([]event.ChainEvent, error) {
	var batches []EventBatch
	err := a.withRetry(ctx, "events", func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		b, err := a.client.GetEvents(ctx, a.contractAddress, fromBlock, toBlock)
		ratelimit.RecordRPCCall("archive", "events", err)
		batches = b
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].BlockInfo.Height < batches[j].BlockInfo.Height
	})

	var out []event.ChainEvent
	for _, b := range batches {
		status, ok := mapChainStatus(b.BlockInfo.ChainStatus)
		if !ok {
			// Orphaned blocks never settle; their events are dropped here.
			a.logger.Warn("skipping block with unsupported chain status",
				"height", b.BlockInfo.Height,
				"state_hash", b.BlockInfo.StateHash,
				"chain_status", b.BlockInfo.ChainStatus)
			continue
		}
		ts := parseTimestamp(b.BlockInfo.Timestamp)

		for _, ed := range b.EventData {
			eventType := model.EventType(ed.Type)
			payload, err := event.ParsePayload(eventType, ed.Data)
			if err != nil {
				return nil, fmt.Errorf("decode %s event in tx %s at height %d: %w",
					ed.Type, ed.TransactionInfo.Hash, b.BlockInfo.Height, err)
			}

			out = append(out, event.ChainEvent{
				BlockHeight:     b.BlockInfo.Height,
				BlockHash:       b.BlockInfo.StateHash,
				ParentBlockHash: b.BlockInfo.ParentHash,
				GlobalSlot:      b.BlockInfo.GlobalSlotSinceGenesis,
				ChainStatus:     status,
				Type:            eventType,
				Payload:         payload,
				Raw:             ed.Data,
				TransactionHash: ed.TransactionInfo.Hash,
				TxStatus:        mapTxStatus(ed.TransactionInfo.Status),
				TxMemo:          ed.TransactionInfo.Memo,
				Timestamp:       ts,
			})
		}
	}
	return out, nil
}

func mapChainStatus(status string) (model.ChainStatus, bool) {
	switch strings.ToLower(status) {
	case "canonical":
		return model.ChainStatusIncluded, true
	case "pending":
		return model.ChainStatusPending, true
	default:
		return "", false
	}
}

func mapTxStatus(status string) model.TxStatus {
	if strings.EqualFold(status, "failed") {
		return model.TxStatusFailed
	}
	return model.TxStatusApplied
}

// parseTimestamp decodes the archive's millisecond UNIX timestamp string.
// A zero time is returned for values the archive did not populate.
func parseTimestamp(value string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

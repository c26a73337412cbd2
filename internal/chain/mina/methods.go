package mina

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const bestChainQuery = `
query BestChainHead {
  bestChain(maxLength: 1) {
    protocolState {
      consensusState {
        blockHeight
        slotSinceGenesis
      }
    }
  }
}`

func (c *Client) GetBestChainHeight(ctx context.Context) (uint32, error) {
	var data struct {
		BestChain []BestChainBlock `json:"bestChain"`
	}
	if err := c.query(ctx, c.nodeURL, bestChainQuery, nil, &data); err != nil {
		return 0, fmt.Errorf("bestChain: %w", err)
	}
	if len(data.BestChain) == 0 {
		return 0, fmt.Errorf("bestChain returned no blocks")
	}

	height, err := ParseUint32(data.BestChain[0].ProtocolState.ConsensusState.BlockHeight)
	if err != nil {
		return 0, fmt.Errorf("parse head height: %w", err)
	}
	return height, nil
}

const eventsQuery = `
query ContractEvents($input: EventFilterOptionsInput!) {
  events(input: $input) {
    blockInfo {
      height
      stateHash
      parentHash
      globalSlotSinceGenesis
      chainStatus
      timestamp
    }
    eventData {
      type
      data
      transactionInfo {
        hash
        memo
        status
      }
    }
  }
}`

// GetEvents returns the per-block event batches the archive recorded for
// address in the inclusive height range [from, to].
func (c *Client) GetEvents(ctx context.Context, address string, from, to uint32) ([]EventBatch, error) {
	var data struct {
		Events []EventBatch `json:"events"`
	}
	variables := map[string]any{
		"input": map[string]any{
			"address": address,
			"from":    from,
			"to":      to,
		},
	}
	if err := c.query(ctx, c.archiveURL, eventsQuery, variables, &data); err != nil {
		return nil, fmt.Errorf("events(%d..%d): %w", from, to, err)
	}
	return data.Events, nil
}

func ParseUint32(value string) (uint32, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", value, err)
	}
	return uint32(parsed), nil
}

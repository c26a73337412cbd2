package chain

import (
	"context"

	"github.com/zkUSD-Protocol/services/internal/domain/event"
)

// Adapter abstracts the chain query surface so the pipeline core stays
// independent of the node's wire protocol.
type Adapter interface {
	// GetHeadHeight returns the best-chain tip height.
	GetHeadHeight(ctx context.Context) (uint32, error)

	// FetchEvents returns every contract event observed in the inclusive
	// range [fromBlock, toBlock], oldest block first. Events seen in
	// not-yet-canonical blocks carry ChainStatusPending.
	FetchEvents(ctx context.Context, fromBlock, toBlock uint32) ([]event.ChainEvent, error)
}

package reducer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zkUSD-Protocol/services/internal/cache"
	"github.com/zkUSD-Protocol/services/internal/domain/event"
	"github.com/zkUSD-Protocol/services/internal/domain/model"
	"github.com/zkUSD-Protocol/services/internal/metrics"
	"github.com/zkUSD-Protocol/services/internal/pipeline/fault"
	"github.com/zkUSD-Protocol/services/internal/store"
)

const (
	vaultCacheSize = 4096
	vaultCacheTTL  = 10 * time.Minute

	skipReasonDuplicateTx = "duplicate_tx"
	skipReasonStaleBlock  = "stale_block"
	skipReasonNonVault    = "non_vault"
)

// Reducer folds vault events into per-address aggregates. Events carry the
// absolute resulting amounts, so applying one replaces state instead of
// accumulating deltas; replaying an already-applied event is a no-op.
type Reducer struct {
	vaults  store.VaultRepository
	cache   *cache.LRU[string, *model.VaultAggregate]
	network string
	logger  *slog.Logger
}

func New(vaults store.VaultRepository, network string, logger *slog.Logger) *Reducer {
	return &Reducer{
		vaults:  vaults,
		cache:   cache.NewLRU[string, *model.VaultAggregate](vaultCacheSize, vaultCacheTTL),
		network: network,
		logger:  logger.With("component", "reducer"),
	}
}

// Apply folds ev into its vault aggregate. It reports whether state changed;
// duplicate and stale events return (false, nil) without a write.
func (r *Reducer) Apply(ctx context.Context, ev event.ChainEvent) (bool, error) {
	if ev.Payload == nil {
		metrics.ReducerEventsSkipped.WithLabelValues(r.network, skipReasonNonVault).Inc()
		return false, nil
	}

	address := ev.Payload.Vault()
	vault, err := r.loadVault(ctx, address)
	if err != nil {
		return false, fault.Wrap(fault.CategoryStore, fmt.Errorf("load vault %s: %w", address, err))
	}

	if vault != nil {
		if vault.LatestTxHash == ev.TransactionHash {
			metrics.ReducerEventsSkipped.WithLabelValues(r.network, skipReasonDuplicateTx).Inc()
			return false, nil
		}
		if ev.BlockHeight < vault.LastUpdateBlock {
			metrics.ReducerEventsSkipped.WithLabelValues(r.network, skipReasonStaleBlock).Inc()
			r.logger.Debug("stale event ignored",
				"vault", address,
				"event_height", ev.BlockHeight,
				"vault_height", vault.LastUpdateBlock,
				"tx", ev.TransactionHash)
			return false, nil
		}
	}

	var next *model.VaultAggregate
	if vault == nil {
		if _, isNew := ev.Payload.(*event.NewVault); !isNew {
			// Events for a vault we never saw created can happen when the
			// start block postdates the vault. Recover from the snapshot
			// the event carries instead of dropping it.
			r.logger.Warn("event for unknown vault, creating from event state",
				"vault", address,
				"event_type", ev.Type,
				"height", ev.BlockHeight)
		}
		next = model.NewVaultAggregate(address, "")
	} else {
		// Work on a copy so a failed write never leaves mutated state in
		// the cache.
		clone := *vault
		next = &clone
	}

	ApplyPayload(next, ev.Payload)
	next.LastUpdateBlock = ev.BlockHeight
	next.LastUpdateAt = ev.Timestamp
	next.LatestTxHash = ev.TransactionHash

	if err := r.vaults.Upsert(ctx, next); err != nil {
		return false, fault.Wrap(fault.CategoryStore, fmt.Errorf("upsert vault %s: %w", address, err))
	}
	r.cache.Put(address, next)

	metrics.ReducerEventsApplied.WithLabelValues(r.network, string(ev.Type)).Inc()
	return true, nil
}

func (r *Reducer) loadVault(ctx context.Context, address string) (*model.VaultAggregate, error) {
	if vault, ok := r.cache.Get(address); ok {
		metrics.VaultCacheHits.WithLabelValues(r.network).Inc()
		return vault, nil
	}
	metrics.VaultCacheMisses.WithLabelValues(r.network).Inc()

	vault, err := r.vaults.FindByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if vault != nil {
		r.cache.Put(address, vault)
	}
	return vault, nil
}

// ApplyPayload mutates vault with the state the event attests to. The switch
// is exhaustive over the closed payload set. It is exported so the integrity
// audit can replay the ledger through the same transition rules.
func ApplyPayload(vault *model.VaultAggregate, payload event.VaultPayload) {
	switch p := payload.(type) {
	case *event.NewVault:
		vault.Owner = p.Owner
		vault.CollateralAmount = "0"
		vault.DebtAmount = "0"
	case *event.VaultOwnerUpdated:
		vault.Owner = p.NewOwner
	case *event.DepositCollateral:
		vault.CollateralAmount = p.VaultCollateralAmount
		vault.DebtAmount = p.VaultDebtAmount
	case *event.RedeemCollateral:
		vault.CollateralAmount = p.VaultCollateralAmount
		vault.DebtAmount = p.VaultDebtAmount
	case *event.MintZkUsd:
		vault.CollateralAmount = p.VaultCollateralAmount
		vault.DebtAmount = p.VaultDebtAmount
	case *event.BurnZkUsd:
		vault.CollateralAmount = p.VaultCollateralAmount
		vault.DebtAmount = p.VaultDebtAmount
	case *event.Liquidate:
		vault.CollateralAmount = "0"
		vault.DebtAmount = "0"
	}
}

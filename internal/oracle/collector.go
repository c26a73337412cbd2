package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/zkUSD-Protocol/services/internal/metrics"
	"github.com/zkUSD-Protocol/services/internal/pipeline/fault"
)

// MaxParticipants is the fixed arity of the submission vector the proof
// circuit consumes. Every collection produces exactly this many
// submissions, dummy-padded when fewer oracle keys are configured.
const MaxParticipants = 8

// DummyPublicKey fills unused submission slots. The circuit treats
// submissions carrying it as padding.
const DummyPublicKey = "B62qiburnzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz7Uy7uNKqi"

// Submission is one oracle's signed price for a block height, pinned to a
// slot in the fixed-arity vector.
type Submission struct {
	Slot      uint32
	PublicKey string
	Price     string
	Signature string
	IsDummy   bool
}

// Signer produces oracle signatures over field vectors. The key material
// stays behind the signer; callers reference keys by public key.
type Signer interface {
	SignFields(ctx context.Context, fields []string, publicKey string) (string, error)
}

// PriceProvider returns the current MINA/USD price in nanousd.
type PriceProvider interface {
	GetPrice(ctx context.Context) (string, error)
}

// Collector assembles the full submission vector for a block height. A
// collection either yields all MaxParticipants submissions or fails as a
// whole; partial vectors are never returned.
type Collector struct {
	signer       Signer
	prices       PriceProvider
	participants []string // whitelisted oracle public keys, slot-ordered
	network      string
	logger       *slog.Logger
}

func NewCollector(signer Signer, prices PriceProvider, participants []string, network string, logger *slog.Logger) (*Collector, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("at least one oracle participant is required")
	}
	if len(participants) > MaxParticipants {
		return nil, fmt.Errorf("%d participants exceed the maximum of %d", len(participants), MaxParticipants)
	}
	return &Collector{
		signer:       signer,
		prices:       prices,
		participants: participants,
		network:      network,
		logger:       logger.With("component", "collector"),
	}, nil
}

// Collect produces the submission vector for blockHeight. Any upstream
// failure surfaces as a single collection error so the caller can fail the
// cycle and retry on the next tick.
func (c *Collector) Collect(ctx context.Context, blockHeight uint32) ([]Submission, error) {
	start := time.Now()

	price, err := c.prices.GetPrice(ctx)
	if err != nil {
		metrics.CollectorRunsTotal.WithLabelValues(c.network, "error").Inc()
		return nil, fault.Wrap(fault.CategoryCollection, fmt.Errorf("fetch price for height %d: %w", blockHeight, err))
	}

	fields := []string{price, strconv.FormatUint(uint64(blockHeight), 10)}

	submissions := make([]Submission, 0, MaxParticipants)
	for i, publicKey := range c.participants {
		signature, err := c.signer.SignFields(ctx, fields, publicKey)
		if err != nil {
			metrics.CollectorRunsTotal.WithLabelValues(c.network, "error").Inc()
			return nil, fault.Wrap(fault.CategoryCollection, fmt.Errorf("sign submission for key %s: %w", publicKey, err))
		}
		submissions = append(submissions, Submission{
			Slot:      uint32(i),
			PublicKey: publicKey,
			Price:     price,
			Signature: signature,
		})
	}

	for i := len(c.participants); i < MaxParticipants; i++ {
		submissions = append(submissions, Submission{
			Slot:      uint32(i),
			PublicKey: DummyPublicKey,
			Price:     "0",
			IsDummy:   true,
		})
	}

	metrics.CollectorRunsTotal.WithLabelValues(c.network, "success").Inc()
	metrics.CollectorDuration.WithLabelValues(c.network).Observe(time.Since(start).Seconds())

	c.logger.Debug("submissions collected",
		"height", blockHeight,
		"price", price,
		"signed", len(c.participants),
		"padded", MaxParticipants-len(c.participants))

	return submissions, nil
}

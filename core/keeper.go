package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"pacochain/observability/metrics"
)

// ErrKeeperPaused is returned when a sweep is attempted while the keeper is
// paused.
var ErrKeeperPaused = errors.New("keeper: paused")

const (
	defaultKeeperInterval  = time.Hour
	defaultKeeperBatchSize = 64
)

// Keeper periodically reaps the pending fees of every minted asset. Touching
// each listing also stamps liquidation for exhausted bonds.
type Keeper struct {
	node      *Node
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.HarbergerMetrics
	now       func() time.Time

	mu     sync.Mutex
	paused bool
}

// KeeperOption customises the keeper instance.
type KeeperOption func(*Keeper)

// WithKeeperInterval configures the sweep cadence.
func WithKeeperInterval(interval time.Duration) KeeperOption {
	return func(k *Keeper) { k.interval = interval }
}

// WithKeeperBatchSize bounds the number of assets reaped per transaction.
func WithKeeperBatchSize(size int) KeeperOption {
	return func(k *Keeper) { k.batchSize = size }
}

// WithKeeperLogger sets the structured logger.
func WithKeeperLogger(l *slog.Logger) KeeperOption {
	return func(k *Keeper) { k.logger = l }
}

// NewKeeper constructs a keeper sweeping node.
func NewKeeper(node *Node, opts ...KeeperOption) *Keeper {
	k := &Keeper{
		node:      node,
		interval:  defaultKeeperInterval,
		batchSize: defaultKeeperBatchSize,
		logger:    slog.Default(),
		metrics:   metrics.Harberger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.interval <= 0 {
		k.interval = defaultKeeperInterval
	}
	if k.batchSize <= 0 {
		k.batchSize = defaultKeeperBatchSize
	}
	if k.logger == nil {
		k.logger = slog.Default()
	}
	return k
}

// Pause halts sweeps until Resume is called.
func (k *Keeper) Pause() {
	k.mu.Lock()
	k.paused = true
	k.mu.Unlock()
}

// Resume re-enables sweeps.
func (k *Keeper) Resume() {
	k.mu.Lock()
	k.paused = false
	k.mu.Unlock()
}

// Paused reports whether sweeps are halted.
func (k *Keeper) Paused() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.paused
}

// Run sweeps once per interval until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		if _, err := k.Sweep(ctx); err != nil && !errors.Is(err, ErrKeeperPaused) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			k.logger.Warn("keeper sweep failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep pages over every minted asset and reaps them in batches. It returns
// the total moved to the treasury.
func (k *Keeper) Sweep(ctx context.Context) (*big.Int, error) {
	total := big.NewInt(0)
	if k.node == nil {
		return total, fmt.Errorf("keeper: node not configured")
	}
	if k.Paused() {
		k.metrics.ObserveKeeperRun("paused", k.now())
		return total, ErrKeeperPaused
	}
	supply, err := k.node.TotalSupply()
	if err != nil {
		k.metrics.ObserveKeeperRun("error", k.now())
		return total, err
	}
	batch := make([]uint64, 0, k.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		reaped, err := k.node.ReapFeesForAssetIDs(batch)
		if err != nil {
			return fmt.Errorf("keeper: reap batch starting at %d: %w", batch[0], err)
		}
		total.Add(total, reaped)
		batch = batch[:0]
		return nil
	}
	for index := uint64(0); index < supply; index++ {
		if err := ctx.Err(); err != nil {
			k.metrics.ObserveKeeperRun("cancelled", k.now())
			return total, err
		}
		id, err := k.node.TokenByIndex(index)
		if err != nil {
			k.metrics.ObserveKeeperRun("error", k.now())
			return total, err
		}
		batch = append(batch, id)
		if len(batch) >= k.batchSize {
			if err := flush(); err != nil {
				k.metrics.ObserveKeeperRun("error", k.now())
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		k.metrics.ObserveKeeperRun("error", k.now())
		return total, err
	}
	k.metrics.ObserveKeeperRun("ok", k.now())
	k.logger.Info("keeper sweep complete",
		slog.Uint64("assets", supply),
		slog.String("reaped", total.String()))
	return total, nil
}

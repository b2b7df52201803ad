package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"feeScope/internal/metrics"
	"feeScope/internal/model"
	"feeScope/internal/storage"
)

// ErrAlreadyRunning is returned by Run when the loop is already active.
var ErrAlreadyRunning = errors.New("indexing loop already running")

// DefaultCycleBackoff is the wait after a failure above chunk level,
// e.g. an unreachable RPC during the height check.
const DefaultCycleBackoff = 5 * time.Second

// ChainSource supplies the current chain height and decoded fee events for
// a block range. Implementations must be idempotent: fetching the same
// range twice yields the same records.
type ChainSource interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	FetchEvents(ctx context.Context, fromBlock, toBlock uint64) ([]model.FeeEvent, error)
}

// RunConfig holds runtime settings for one chain's indexing loop.
type RunConfig struct {
	ChainID       uint64
	StartBlock    uint64
	EndBlock      uint64 // 0 means continuous mode
	ChunkSize     uint64
	FinalityDepth uint64
	PollInterval  time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	CycleBackoff  time.Duration
}

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateStopped
)

// Runner drives the indexing loop for a single chain: it reads the
// watermark, plans chunks up to the finality-adjusted target height, runs
// each chunk under the retry policy, and advances the watermark only after
// a chunk's events are durably stored. One Runner instance runs per chain;
// instances share nothing but the store.
type Runner struct {
	cfg    RunConfig
	source ChainSource
	store  storage.Store
	logger *zap.Logger
	policy RetryPolicy
	label  string

	mu     sync.Mutex
	state  runState
	stopCh chan struct{}
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source ChainSource, store storage.Store, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		source: source,
		store:  store,
		logger: logger.With(zap.Uint64("chain_id", cfg.ChainID)),
		policy: RetryPolicy{MaxAttempts: cfg.MaxAttempts, Backoff: cfg.RetryBackoff},
		label:  metrics.ChainLabel(cfg.ChainID),
		stopCh: make(chan struct{}),
	}
}

// Stop requests a cooperative shutdown. It is idempotent and takes effect
// at the next cycle boundary or poll wait; an in-flight chunk attempt runs
// to completion.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
}

// Run executes the indexing loop until the context is cancelled, Stop is
// called, or (in bounded mode) the configured end block is fully processed.
// A Runner runs at most once; a second Run returns ErrAlreadyRunning.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("chain source is nil")
	}
	if r.store == nil {
		return fmt.Errorf("store is nil")
	}
	if r.cfg.ChunkSize == 0 {
		return fmt.Errorf("chunk size must be greater than zero")
	}
	if r.cfg.EndBlock > 0 && r.cfg.EndBlock < r.cfg.StartBlock {
		return fmt.Errorf("end block %d precedes start block %d", r.cfg.EndBlock, r.cfg.StartBlock)
	}

	r.mu.Lock()
	if r.state != stateIdle {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.state = stateRunning
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.state = stateStopped
		r.mu.Unlock()
	}()

	pollInterval := r.cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 12 * time.Second
	}
	cycleBackoff := r.cfg.CycleBackoff
	if cycleBackoff <= 0 {
		cycleBackoff = DefaultCycleBackoff
	}

	r.logger.Info("indexing loop start",
		zap.Uint64("start_block", r.cfg.StartBlock),
		zap.Uint64("end_block", r.cfg.EndBlock),
		zap.Uint64("chunk_size", r.cfg.ChunkSize),
		zap.Uint64("finality_depth", r.cfg.FinalityDepth),
	)

	var (
		from        uint64
		initialized bool
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stopCh:
			r.logger.Info("indexing loop stopped")
			return nil
		default:
		}

		// Resume point is read once; afterwards the loop's local
		// position is authoritative until restart.
		if !initialized {
			watermark, ok, err := r.store.GetWatermark(ctx, r.cfg.ChainID)
			if err != nil {
				r.cycleError("read watermark", err)
				r.sleep(ctx, cycleBackoff)
				continue
			}
			if ok && watermark+1 > r.cfg.StartBlock {
				from = watermark + 1
				r.logger.Info("resume from watermark", zap.Uint64("last_processed", watermark))
			} else {
				from = r.cfg.StartBlock
			}
			initialized = true
		}

		height, err := r.source.CurrentHeight(ctx)
		if err != nil {
			r.cycleError("get chain height", err)
			r.sleep(ctx, cycleBackoff)
			continue
		}

		target, ok := TargetHeight(height, r.cfg.FinalityDepth, r.cfg.EndBlock)
		if !ok || from > target {
			if r.cfg.EndBlock > 0 && from > r.cfg.EndBlock {
				r.logger.Info("bounded range complete", zap.Uint64("end_block", r.cfg.EndBlock))
				return nil
			}
			r.sleep(ctx, pollInterval)
			continue
		}

		chunks, err := SplitRange(from, target, r.cfg.ChunkSize)
		if err != nil {
			r.cycleError("plan chunks", err)
			r.sleep(ctx, cycleBackoff)
			continue
		}

		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.stopCh:
				r.logger.Info("indexing loop stopped")
				return nil
			default:
			}

			next, err := r.processChunk(ctx, chunk)
			if err != nil {
				return err
			}
			from = next
		}
		// Re-check the height immediately: more blocks may already be
		// final. The poll wait only applies when caught up.
	}
}

// processChunk runs one chunk under the retry policy. Whether the chunk
// succeeds or is skipped, it returns the next from-block so the loop always
// makes progress. Only context cancellation returns an error.
func (r *Runner) processChunk(ctx context.Context, chunk BlockRange) (uint64, error) {
	var fetched int

	attempt := func(ctx context.Context) error {
		events, err := r.source.FetchEvents(ctx, chunk.From, chunk.To)
		if err != nil {
			return fmt.Errorf("fetch events: %w", err)
		}
		if err := r.store.SaveEvents(ctx, events); err != nil {
			return fmt.Errorf("store events: %w", err)
		}
		// Checkpoint strictly after persistence.
		if err := r.store.SetWatermark(ctx, r.cfg.ChainID, chunk.To); err != nil {
			return fmt.Errorf("set watermark: %w", err)
		}
		fetched = len(events)
		return nil
	}

	outcome, attempts, err := r.policy.Execute(ctx, func(ctx context.Context) error {
		attemptErr := attempt(ctx)
		if attemptErr != nil {
			metrics.ChunkRetries.WithLabelValues(r.label).Inc()
			r.logger.Warn("chunk attempt failed",
				zap.Uint64("from", chunk.From),
				zap.Uint64("to", chunk.To),
				zap.Error(attemptErr),
			)
		}
		return attemptErr
	})

	switch outcome {
	case ChunkSucceeded:
		metrics.BlocksProcessed.WithLabelValues(r.label).Add(float64(chunk.To - chunk.From + 1))
		metrics.EventsStored.WithLabelValues(r.label).Add(float64(fetched))
		metrics.LastProcessedBlock.WithLabelValues(r.label).Set(float64(chunk.To))
		r.logger.Info("chunk complete",
			zap.Uint64("from", chunk.From),
			zap.Uint64("to", chunk.To),
			zap.Int("events", fetched),
			zap.Int("attempts", attempts),
		)
		return chunk.To + 1, nil

	case ChunkSkipped:
		// Circuit breaker: flag the exact gap for manual backfill and
		// move on so one bad chunk cannot stall the whole chain.
		metrics.ChunksSkipped.WithLabelValues(r.label).Inc()
		r.logger.Error("circuit breaker open, skipping block range",
			zap.Uint64("chain_id", r.cfg.ChainID),
			zap.Uint64("from", chunk.From),
			zap.Uint64("to", chunk.To),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		skipped := model.SkippedRange{
			ChainID:   r.cfg.ChainID,
			FromBlock: chunk.From,
			ToBlock:   chunk.To,
			Reason:    err.Error(),
		}
		if recordErr := r.store.RecordSkippedRange(ctx, skipped); recordErr != nil {
			r.logger.Error("record skipped range failed", zap.Error(recordErr))
		}
		if wmErr := r.store.SetWatermark(ctx, r.cfg.ChainID, chunk.To); wmErr != nil {
			r.logger.Error("advance watermark past skipped range failed", zap.Error(wmErr))
		} else {
			metrics.LastProcessedBlock.WithLabelValues(r.label).Set(float64(chunk.To))
		}
		return chunk.To + 1, nil

	default:
		return 0, err
	}
}

func (r *Runner) cycleError(op string, err error) {
	metrics.CycleErrors.WithLabelValues(r.label).Inc()
	r.logger.Warn("indexing cycle error", zap.String("op", op), zap.Error(err))
}

// sleep waits for d, returning false when interrupted by cancellation or
// Stop.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-r.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

package storage

import (
	"context"

	"feeScope/internal/model"
)

// Store is the durable sink for fee events and per-chain watermarks.
// Implementations must be safe for concurrent use: one indexing loop runs
// per chain and all of them share a single Store.
type Store interface {
	// GetWatermark returns the last processed block for a chain,
	// and false when no watermark exists yet.
	GetWatermark(ctx context.Context, chainID uint64) (uint64, bool, error)

	// SetWatermark upserts the last processed block for a chain.
	SetWatermark(ctx context.Context, chainID uint64, blockNumber uint64) error

	// SaveEvents bulk-inserts fee events. Rows violating the natural key
	// (chain_id, block_number, tx_hash, log_index) are silently ignored.
	// No-op on empty input.
	SaveEvents(ctx context.Context, events []model.FeeEvent) error

	// EventsByIntegrator returns stored events for a lowercase-normalized
	// integrator address, ordered by block number then log index ascending.
	EventsByIntegrator(ctx context.Context, integrator string, limit, offset int) ([]model.FeeEvent, error)

	// Watermarks returns the watermark of every known chain.
	Watermarks(ctx context.Context) ([]model.Watermark, error)

	// RecordSkippedRange registers a block range the circuit breaker
	// abandoned, so a later backfill can find it.
	RecordSkippedRange(ctx context.Context, skipped model.SkippedRange) error

	// ResolveSkippedRanges marks skipped ranges fully covered by
	// [fromBlock, toBlock] as resolved and returns how many were updated.
	ResolveSkippedRanges(ctx context.Context, chainID, fromBlock, toBlock uint64) (int64, error)
}

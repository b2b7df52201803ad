package model

// Watermark records the last block fully and durably processed for a chain.
// All blocks at or below LastProcessedBlock have been persisted.
type Watermark struct {
	ChainID            uint64 `json:"chain_id"`
	LastProcessedBlock uint64 `json:"last_processed_block"`
}

// SkippedRange records a block range the circuit breaker gave up on.
// The watermark has advanced past it; the range needs a manual backfill.
type SkippedRange struct {
	ID        int64  `json:"id"`
	ChainID   uint64 `json:"chain_id"`
	FromBlock uint64 `json:"from_block"`
	ToBlock   uint64 `json:"to_block"`
	Reason    string `json:"reason"`
	Resolved  bool   `json:"resolved"`
}

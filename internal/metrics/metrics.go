package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LastProcessedBlock is the watermark per chain.
	LastProcessedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feescope_last_processed_block",
			Help: "The last block number durably processed per chain",
		},
		[]string{"chain"},
	)

	// BlocksProcessed counts blocks covered by completed chunks.
	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feescope_blocks_processed_total",
			Help: "Total number of blocks processed",
		},
		[]string{"chain"},
	)

	// EventsStored counts fee events handed to the store.
	EventsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feescope_events_stored_total",
			Help: "Total number of fee events persisted",
		},
		[]string{"chain"},
	)

	// ChunkRetries counts failed chunk attempts that will be retried.
	ChunkRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feescope_chunk_retries_total",
			Help: "Total number of failed chunk attempts",
		},
		[]string{"chain"},
	)

	// ChunksSkipped counts chunks abandoned by the circuit breaker.
	ChunksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feescope_chunks_skipped_total",
			Help: "Total number of chunks skipped after retry exhaustion",
		},
		[]string{"chain"},
	)

	// CycleErrors counts failures above chunk level, e.g. height checks.
	CycleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feescope_cycle_errors_total",
			Help: "Total number of indexing cycle errors",
		},
		[]string{"chain"},
	)
)

// ChainLabel renders a chain ID as a metric label value.
func ChainLabel(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}

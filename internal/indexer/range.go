package indexer

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// TargetHeight computes the highest block that is safe to index given the
// current chain height and the configured finality depth. The most recent
// finalityDepth blocks are excluded because they may still be reorganized.
//
// With endBlock set (bounded mode), the end is capped at the current height;
// an end within finalityDepth of the tip is treated as still volatile and
// the finality-adjusted height applies instead. Deep-historical ends carry
// no reorg risk and are used as-is.
//
// The second return value is false when no block is final yet.
func TargetHeight(currentHeight, finalityDepth, endBlock uint64) (uint64, bool) {
	if currentHeight < finalityDepth {
		return 0, false
	}
	finalized := currentHeight - finalityDepth

	if endBlock == 0 {
		return finalized, true
	}

	capped := endBlock
	if capped > currentHeight {
		capped = currentHeight
	}
	if capped > finalized {
		return finalized, true
	}
	return capped, true
}

// SplitRange splits a block range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}

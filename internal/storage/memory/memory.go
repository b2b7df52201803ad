package memory

import (
	"context"
	"sort"
	"sync"

	"feeScope/internal/model"
)

// Store is an in-memory Store implementation. It mirrors the Postgres
// store's semantics (idempotent inserts, watermark upserts) and backs unit
// tests and dry runs.
type Store struct {
	mu         sync.RWMutex
	events     map[model.EventKey]model.FeeEvent
	watermarks map[uint64]uint64
	skipped    []model.SkippedRange
	nextID     int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		events:     make(map[model.EventKey]model.FeeEvent),
		watermarks: make(map[uint64]uint64),
		nextID:     1,
	}
}

// GetWatermark returns the last processed block for a chain.
func (s *Store) GetWatermark(_ context.Context, chainID uint64) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	block, ok := s.watermarks[chainID]
	return block, ok, nil
}

// SetWatermark upserts the last processed block for a chain.
func (s *Store) SetWatermark(_ context.Context, chainID, blockNumber uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[chainID] = blockNumber
	return nil
}

// SaveEvents stores events, ignoring rows whose natural key already exists.
func (s *Store) SaveEvents(_ context.Context, events []model.FeeEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range events {
		key := event.Key()
		if _, exists := s.events[key]; exists {
			continue
		}
		s.events[key] = event
	}
	return nil
}

// EventsByIntegrator returns stored events for an integrator address,
// ordered by block number then log index.
func (s *Store) EventsByIntegrator(_ context.Context, integrator string, limit, offset int) ([]model.FeeEvent, error) {
	integrator = model.NormalizeHex(integrator)

	s.mu.RLock()
	matched := make([]model.FeeEvent, 0)
	for _, event := range s.events {
		if event.Integrator == integrator {
			matched = append(matched, event)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].BlockNumber != matched[j].BlockNumber {
			return matched[i].BlockNumber < matched[j].BlockNumber
		}
		return matched[i].LogIndex < matched[j].LogIndex
	})

	if offset > 0 {
		if offset >= len(matched) {
			return []model.FeeEvent{}, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// Watermarks returns the watermark of every known chain.
func (s *Store) Watermarks(_ context.Context) ([]model.Watermark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	marks := make([]model.Watermark, 0, len(s.watermarks))
	for chainID, block := range s.watermarks {
		marks = append(marks, model.Watermark{ChainID: chainID, LastProcessedBlock: block})
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].ChainID < marks[j].ChainID })
	return marks, nil
}

// RecordSkippedRange registers an abandoned block range.
func (s *Store) RecordSkippedRange(_ context.Context, skipped model.SkippedRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	skipped.ID = s.nextID
	s.nextID++
	s.skipped = append(s.skipped, skipped)
	return nil
}

// ResolveSkippedRanges marks skipped ranges covered by [fromBlock, toBlock]
// as resolved.
func (s *Store) ResolveSkippedRanges(_ context.Context, chainID, fromBlock, toBlock uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resolved int64
	for i := range s.skipped {
		r := &s.skipped[i]
		if r.Resolved || r.ChainID != chainID {
			continue
		}
		if r.FromBlock >= fromBlock && r.ToBlock <= toBlock {
			r.Resolved = true
			resolved++
		}
	}
	return resolved, nil
}

// SkippedRanges returns a copy of all recorded skipped ranges.
func (s *Store) SkippedRanges() []model.SkippedRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SkippedRange, len(s.skipped))
	copy(out, s.skipped)
	return out
}

// EventCount returns the number of distinct stored events.
func (s *Store) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

package memory

import (
	"context"
	"testing"

	"feeScope/internal/model"
)

func event(block, logIndex uint64, integrator string) model.FeeEvent {
	return model.FeeEvent{
		ChainID:       137,
		BlockNumber:   block,
		TxHash:        "0xaaa",
		LogIndex:      logIndex,
		Token:         "0x1111111111111111111111111111111111111111",
		Integrator:    integrator,
		IntegratorFee: "100",
		ProtocolFee:   "10",
	}
}

func TestSaveEventsDeduplicates(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	e := event(100, 1, "0xabcabcabcabcabcabcabcabcabcabcabcabcabc1")
	if err := store.SaveEvents(ctx, []model.FeeEvent{e, e}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveEvents(ctx, []model.FeeEvent{e}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	if store.EventCount() != 1 {
		t.Fatalf("event count = %d, want 1", store.EventCount())
	}
}

func TestSaveEventsEmptyIsNoop(t *testing.T) {
	store := NewStore()
	if err := store.SaveEvents(context.Background(), nil); err != nil {
		t.Fatalf("empty save must not error: %v", err)
	}
	if err := store.SaveEvents(context.Background(), []model.FeeEvent{}); err != nil {
		t.Fatalf("empty save must not error: %v", err)
	}
}

func TestEventsByIntegratorNormalizesQuery(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	integrator := "0xabcabcabcabcabcabcabcabcabcabcabcabcabc1"
	events := []model.FeeEvent{
		event(200, 0, integrator),
		event(100, 2, integrator),
		event(100, 1, integrator),
		event(150, 0, "0xother0000000000000000000000000000000000"),
	}
	if err := store.SaveEvents(ctx, events); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mixed-case lookup matches the same rows as lowercase.
	got, err := store.EventsByIntegrator(ctx, "0xABCabcABCabcABCabcABCabcABCabcABCabcABC1", 0, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("matched %d events, want 3", len(got))
	}

	// Ordered by block number then log index.
	wantOrder := []struct{ block, logIndex uint64 }{{100, 1}, {100, 2}, {200, 0}}
	for i, w := range wantOrder {
		if got[i].BlockNumber != w.block || got[i].LogIndex != w.logIndex {
			t.Fatalf("position %d = (%d,%d), want (%d,%d)",
				i, got[i].BlockNumber, got[i].LogIndex, w.block, w.logIndex)
		}
	}
}

func TestEventsByIntegratorPagination(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	integrator := "0xabcabcabcabcabcabcabcabcabcabcabcabcabc1"
	for i := uint64(0); i < 5; i++ {
		if err := store.SaveEvents(ctx, []model.FeeEvent{event(100+i, 0, integrator)}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	page, err := store.EventsByIntegrator(ctx, integrator, 2, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page) != 2 || page[0].BlockNumber != 102 || page[1].BlockNumber != 103 {
		t.Fatalf("page = %+v, want blocks 102, 103", page)
	}

	empty, err := store.EventsByIntegrator(ctx, integrator, 10, 100)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("offset past end must return empty, got %+v", empty)
	}
}

func TestWatermarkUpsert(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, ok, _ := store.GetWatermark(ctx, 137); ok {
		t.Fatalf("fresh store must have no watermark")
	}

	if err := store.SetWatermark(ctx, 137, 100); err != nil {
		t.Fatal(err)
	}
	if err := store.SetWatermark(ctx, 137, 200); err != nil {
		t.Fatal(err)
	}

	block, ok, err := store.GetWatermark(ctx, 137)
	if err != nil || !ok || block != 200 {
		t.Fatalf("watermark = (%d, %v, %v), want (200, true, nil)", block, ok, err)
	}
}

func TestResolveSkippedRanges(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	ranges := []model.SkippedRange{
		{ChainID: 1, FromBlock: 100, ToBlock: 109, Reason: "poisoned"},
		{ChainID: 1, FromBlock: 200, ToBlock: 209, Reason: "poisoned"},
		{ChainID: 2, FromBlock: 100, ToBlock: 109, Reason: "poisoned"},
	}
	for _, r := range ranges {
		if err := store.RecordSkippedRange(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	resolved, err := store.ResolveSkippedRanges(ctx, 1, 90, 150)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != 1 {
		t.Fatalf("resolved = %d, want 1", resolved)
	}

	remaining := 0
	for _, r := range store.SkippedRanges() {
		if !r.Resolved {
			remaining++
		}
	}
	if remaining != 2 {
		t.Fatalf("unresolved = %d, want 2", remaining)
	}
}

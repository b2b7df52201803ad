package indexer

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{{From: 5, To: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestSplitRangeCoverage(t *testing.T) {
	cases := []struct {
		from, to, batch uint64
	}{
		{0, 0, 1},
		{0, 999, 7},
		{100, 119, 10},
		{100, 100, 2000},
		{5, 104, 100},
	}

	for _, tc := range cases {
		ranges, err := SplitRange(tc.from, tc.to, tc.batch)
		if err != nil {
			t.Fatalf("SplitRange(%d,%d,%d): %v", tc.from, tc.to, tc.batch, err)
		}

		expectedNext := tc.from
		for _, r := range ranges {
			if r.From != expectedNext {
				t.Fatalf("gap or overlap at %d: expected from %d", r.From, expectedNext)
			}
			if r.To < r.From {
				t.Fatalf("inverted range %+v", r)
			}
			if r.To-r.From+1 > tc.batch {
				t.Fatalf("range %+v exceeds batch size %d", r, tc.batch)
			}
			expectedNext = r.To + 1
		}
		if expectedNext != tc.to+1 {
			t.Fatalf("ranges stop at %d, want coverage through %d", expectedNext-1, tc.to)
		}
	}
}

func TestTargetHeightContinuous(t *testing.T) {
	target, ok := TargetHeight(1000, 128, 0)
	if !ok || target != 872 {
		t.Fatalf("got (%d, %v), want (872, true)", target, ok)
	}
}

func TestTargetHeightBounded(t *testing.T) {
	cases := []struct {
		name       string
		height     uint64
		finality   uint64
		endBlock   uint64
		wantTarget uint64
		wantOK     bool
	}{
		{"historical end, no finality applied", 1000, 128, 500, 500, true},
		{"end near tip, finality applied", 1000, 128, 950, 872, true},
		{"end beyond tip, capped then adjusted", 1000, 128, 5_000_000, 872, true},
		{"end equals finalized boundary", 1000, 128, 872, 872, true},
		{"nothing final yet", 100, 128, 0, 0, false},
		{"nothing final yet, bounded", 100, 128, 50, 0, false},
	}

	for _, tc := range cases {
		target, ok := TargetHeight(tc.height, tc.finality, tc.endBlock)
		if target != tc.wantTarget || ok != tc.wantOK {
			t.Fatalf("%s: got (%d, %v), want (%d, %v)", tc.name, target, ok, tc.wantTarget, tc.wantOK)
		}
	}
}

package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalizeHex(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0xABCDEF0123456789abcdef0123456789ABCDEF01", "0xabcdef0123456789abcdef0123456789abcdef01"},
		{"  0xAbC  ", "0xabc"},
		{"0xabc", "0xabc"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeHex(tc.in); got != tc.want {
			t.Fatalf("NormalizeHex(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFeeEventKey(t *testing.T) {
	a := FeeEvent{ChainID: 137, BlockNumber: 100, TxHash: "0xaa", LogIndex: 3, IntegratorFee: "1"}
	b := FeeEvent{ChainID: 137, BlockNumber: 100, TxHash: "0xaa", LogIndex: 3, IntegratorFee: "2"}
	c := FeeEvent{ChainID: 137, BlockNumber: 100, TxHash: "0xaa", LogIndex: 4}

	if a.Key() != b.Key() {
		t.Fatalf("same identity must produce the same key")
	}
	if a.Key() == c.Key() {
		t.Fatalf("different log index must produce a different key")
	}
}

func TestFeeEventJSONRoundTrip(t *testing.T) {
	original := FeeEvent{
		ChainID:         137,
		BlockNumber:     47961368,
		TxHash:          "0xdef456",
		LogIndex:        12,
		BlockTimestamp:  1700000000,
		ContractAddress: "0xbd6c7b0d2f68c2b7805d88388319cfb6ecb50ea9",
		Token:           "0x1111111111111111111111111111111111111111",
		Integrator:      "0x2222222222222222222222222222222222222222",
		IntegratorFee:   "115792089237316195423570985008687907853269984665640564039457584007913129639935",
		ProtocolFee:     "0",
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded FeeEvent
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

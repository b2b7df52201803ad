package model

import "strings"

// FeeEvent is the normalized representation of one FeesCollected emission.
// Addresses and the transaction hash are lowercase hex; fee amounts are
// decimal strings so arbitrary-precision values survive storage and JSON.
type FeeEvent struct {
	ChainID         uint64 `json:"chain_id"`
	BlockNumber     uint64 `json:"block_number"`
	TxHash          string `json:"tx_hash"`
	LogIndex        uint64 `json:"log_index"`
	BlockTimestamp  uint64 `json:"block_timestamp"`
	ContractAddress string `json:"contract_address"`
	Token           string `json:"token"`
	Integrator      string `json:"integrator"`
	IntegratorFee   string `json:"integrator_fee"`
	ProtocolFee     string `json:"protocol_fee"`
}

// Key returns the natural identity of the event. Two events with the same
// key describe the same on-chain emission.
type EventKey struct {
	ChainID     uint64
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64
}

// Key returns the natural key of the event.
func (e FeeEvent) Key() EventKey {
	return EventKey{
		ChainID:     e.ChainID,
		BlockNumber: e.BlockNumber,
		TxHash:      e.TxHash,
		LogIndex:    e.LogIndex,
	}
}

// NormalizeHex lowercases a 0x-prefixed hex string so addresses and hashes
// compare and index consistently regardless of checksum casing.
func NormalizeHex(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"feeScope/internal/model"
)

// ErrUnavailable marks a transport failure talking to the chain RPC.
var ErrUnavailable = errors.New("chain source unavailable")

// DecodeError records a decode failure for a single log.
type DecodeError struct {
	ChainID     uint64
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64
	Reason      string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode log %d:%s:%d: %s", e.BlockNumber, e.TxHash, e.LogIndex, e.Reason)
}

// Source reads and decodes FeesCollected events for one chain.
// FetchEvents is idempotent: the same range always yields the same records.
type Source struct {
	client   *Client
	chainID  uint64
	contract common.Address
	event    abi.Event
	logger   *zap.Logger
}

// NewSource builds a Source for the given fee collector contract.
func NewSource(client *Client, chainID uint64, contract common.Address, logger *zap.Logger) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	collectorABI, err := FeeCollectorABI()
	if err != nil {
		return nil, fmt.Errorf("parse fee collector abi: %w", err)
	}

	return &Source{
		client:   client,
		chainID:  chainID,
		contract: contract,
		event:    collectorABI.Events["FeesCollected"],
		logger:   logger,
	}, nil
}

// ChainID returns the chain identifier this source reads.
func (s *Source) ChainID() uint64 {
	return s.chainID
}

// CurrentHeight returns the latest block number on the chain.
func (s *Source) CurrentHeight(ctx context.Context) (uint64, error) {
	height, err := s.client.LatestBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return height, nil
}

// FetchEvents returns decoded fee events in [fromBlock, toBlock], ascending
// by block number then log index.
func (s *Source) FetchEvents(ctx context.Context, fromBlock, toBlock uint64) ([]model.FeeEvent, error) {
	logs, err := s.client.FilterLogs(ctx, fromBlock, toBlock, []common.Address{s.contract}, []common.Hash{s.event.ID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	events := make([]model.FeeEvent, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}

		ts, err := s.client.BlockTimestamp(ctx, log.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("%w: block timestamp %d: %v", ErrUnavailable, log.BlockNumber, err)
		}

		event, err := s.decodeLog(log, ts)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})

	return events, nil
}

func (s *Source) decodeLog(log types.Log, timestamp uint64) (model.FeeEvent, error) {
	if len(log.Topics) != 3 {
		return model.FeeEvent{}, &DecodeError{
			ChainID:     s.chainID,
			BlockNumber: log.BlockNumber,
			TxHash:      log.TxHash.Hex(),
			LogIndex:    uint64(log.Index),
			Reason:      fmt.Sprintf("expected 3 topics, got %d", len(log.Topics)),
		}
	}

	values, err := s.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.FeeEvent{}, &DecodeError{
			ChainID:     s.chainID,
			BlockNumber: log.BlockNumber,
			TxHash:      log.TxHash.Hex(),
			LogIndex:    uint64(log.Index),
			Reason:      fmt.Sprintf("unpack data: %v", err),
		}
	}
	if len(values) != 2 {
		return model.FeeEvent{}, &DecodeError{
			ChainID:     s.chainID,
			BlockNumber: log.BlockNumber,
			TxHash:      log.TxHash.Hex(),
			LogIndex:    uint64(log.Index),
			Reason:      fmt.Sprintf("expected 2 data values, got %d", len(values)),
		}
	}

	integratorFee, ok := values[0].(*big.Int)
	if !ok {
		return model.FeeEvent{}, &DecodeError{
			ChainID:     s.chainID,
			BlockNumber: log.BlockNumber,
			TxHash:      log.TxHash.Hex(),
			LogIndex:    uint64(log.Index),
			Reason:      "integrator fee is not uint256",
		}
	}
	protocolFee, ok := values[1].(*big.Int)
	if !ok {
		return model.FeeEvent{}, &DecodeError{
			ChainID:     s.chainID,
			BlockNumber: log.BlockNumber,
			TxHash:      log.TxHash.Hex(),
			LogIndex:    uint64(log.Index),
			Reason:      "protocol fee is not uint256",
		}
	}

	token := common.BytesToAddress(log.Topics[1].Bytes())
	integrator := common.BytesToAddress(log.Topics[2].Bytes())

	return model.FeeEvent{
		ChainID:         s.chainID,
		BlockNumber:     log.BlockNumber,
		TxHash:          model.NormalizeHex(log.TxHash.Hex()),
		LogIndex:        uint64(log.Index),
		BlockTimestamp:  timestamp,
		ContractAddress: model.NormalizeHex(log.Address.Hex()),
		Token:           model.NormalizeHex(token.Hex()),
		Integrator:      model.NormalizeHex(integrator.Hex()),
		IntegratorFee:   integratorFee.String(),
		ProtocolFee:     protocolFee.String(),
	}, nil
}

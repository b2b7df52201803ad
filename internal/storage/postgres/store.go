package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"feeScope/internal/model"
)

// Store provides Postgres persistence for fee events and watermarks.
// The unique-key constraint on fee_events carries the dedup guarantee, so
// re-inserting an already stored event is silent.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and applies pending migrations.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveEvents bulk-inserts fee events, ignoring duplicate natural keys.
func (s *Store) SaveEvents(ctx context.Context, events []model.FeeEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		batch.Queue(`
			INSERT INTO fee_events (
				chain_id, block_number, tx_hash, log_index, block_timestamp,
				contract_address, token, integrator, integrator_fee, protocol_fee, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
			ON CONFLICT (chain_id, block_number, tx_hash, log_index) DO NOTHING
		`,
			int64(event.ChainID),
			int64(event.BlockNumber),
			event.TxHash,
			int64(event.LogIndex),
			int64(event.BlockTimestamp),
			event.ContractAddress,
			event.Token,
			event.Integrator,
			event.IntegratorFee,
			event.ProtocolFee,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert fee event: %w", err)
		}
	}
	return nil
}

// GetWatermark returns the last processed block for a chain.
func (s *Store) GetWatermark(ctx context.Context, chainID uint64) (uint64, bool, error) {
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM watermarks WHERE chain_id=$1`, int64(chainID))
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SetWatermark upserts the last processed block for a chain.
func (s *Store) SetWatermark(ctx context.Context, chainID, blockNumber uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watermarks (chain_id, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chain_id) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, int64(chainID), int64(blockNumber))
	return err
}

// EventsByIntegrator returns events for an integrator address, ordered by
// block number then log index ascending.
func (s *Store) EventsByIntegrator(ctx context.Context, integrator string, limit, offset int) ([]model.FeeEvent, error) {
	integrator = model.NormalizeHex(integrator)

	query := `
		SELECT chain_id, block_number, tx_hash, log_index, block_timestamp,
		       contract_address, token, integrator,
		       integrator_fee::text, protocol_fee::text
		FROM fee_events
		WHERE integrator = $1
		ORDER BY block_number ASC, log_index ASC
	`
	args := []any{integrator}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]model.FeeEvent, 0)
	for rows.Next() {
		var event model.FeeEvent
		var chainID, blockNumber, logIndex, ts int64
		if err := rows.Scan(
			&chainID,
			&blockNumber,
			&event.TxHash,
			&logIndex,
			&ts,
			&event.ContractAddress,
			&event.Token,
			&event.Integrator,
			&event.IntegratorFee,
			&event.ProtocolFee,
		); err != nil {
			return nil, err
		}
		event.ChainID = uint64(chainID)
		event.BlockNumber = uint64(blockNumber)
		event.LogIndex = uint64(logIndex)
		event.BlockTimestamp = uint64(ts)
		events = append(events, event)
	}
	return events, rows.Err()
}

// Watermarks returns the watermark of every known chain.
func (s *Store) Watermarks(ctx context.Context) ([]model.Watermark, error) {
	rows, err := s.pool.Query(ctx, `SELECT chain_id, last_processed_block FROM watermarks ORDER BY chain_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marks := make([]model.Watermark, 0)
	for rows.Next() {
		var chainID, block int64
		if err := rows.Scan(&chainID, &block); err != nil {
			return nil, err
		}
		marks = append(marks, model.Watermark{ChainID: uint64(chainID), LastProcessedBlock: uint64(block)})
	}
	return marks, rows.Err()
}

// RecordSkippedRange registers a block range abandoned by the circuit breaker.
func (s *Store) RecordSkippedRange(ctx context.Context, skipped model.SkippedRange) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO skipped_ranges (chain_id, from_block, to_block, reason, resolved, created_at)
		VALUES ($1, $2, $3, $4, false, now())
	`, int64(skipped.ChainID), int64(skipped.FromBlock), int64(skipped.ToBlock), skipped.Reason)
	return err
}

// ResolveSkippedRanges marks skipped ranges fully covered by the given range
// as resolved.
func (s *Store) ResolveSkippedRanges(ctx context.Context, chainID, fromBlock, toBlock uint64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE skipped_ranges
		SET resolved = true
		WHERE chain_id = $1 AND NOT resolved AND from_block >= $2 AND to_block <= $3
	`, int64(chainID), int64(fromBlock), int64(toBlock))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

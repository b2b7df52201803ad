package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"feeScope/internal/chain"
	"feeScope/internal/config"
	"feeScope/internal/indexer"
	"feeScope/internal/storage/postgres"
)

func runBackfill(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	chainID, _ := cmd.Flags().GetUint64("chain-id")
	from, _ := cmd.Flags().GetUint64("from")
	to, _ := cmd.Flags().GetUint64("to")

	if chainID == 0 {
		return fmt.Errorf("--chain-id is required")
	}
	if to < from {
		return fmt.Errorf("--to (%d) must be >= --from (%d)", to, from)
	}

	src, ok := cfg.SourceByChainID(chainID)
	if !ok {
		return fmt.Errorf("chain %d is not configured", chainID)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer store.Close()

	client, err := chain.NewClient(ctx, src.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	source, err := chain.NewSource(client, src.ChainID, common.HexToAddress(src.Contract), logger)
	if err != nil {
		return err
	}

	policy := indexer.RetryPolicy{MaxAttempts: src.MaxAttempts, Backoff: src.RetryBackoff}
	chunks, err := indexer.SplitRange(from, to, src.ChunkSize)
	if err != nil {
		return fmt.Errorf("plan chunks: %w", err)
	}

	logger.Info("backfill starting",
		zap.Uint64("chain_id", chainID),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("chunks", len(chunks)),
	)

	var events int
	for _, chunk := range chunks {
		var fetched int
		outcome, attempts, err := policy.Execute(ctx, func(ctx context.Context) error {
			batch, err := source.FetchEvents(ctx, chunk.From, chunk.To)
			if err != nil {
				return err
			}
			if err := store.SaveEvents(ctx, batch); err != nil {
				return err
			}
			fetched = len(batch)
			return nil
		})
		if outcome != indexer.ChunkSucceeded {
			return fmt.Errorf("backfill chunk [%d, %d] failed after %d attempts: %w",
				chunk.From, chunk.To, attempts, err)
		}
		events += fetched
	}

	resolved, err := store.ResolveSkippedRanges(ctx, chainID, from, to)
	if err != nil {
		return fmt.Errorf("resolve skipped ranges: %w", err)
	}

	logger.Info("backfill complete",
		zap.Uint64("chain_id", chainID),
		zap.Int("events", events),
		zap.Int64("skipped_ranges_resolved", resolved),
	)
	return nil
}

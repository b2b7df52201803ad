package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"feeScope/internal/api"
	"feeScope/internal/chain"
	"feeScope/internal/config"
	"feeScope/internal/indexer"
	"feeScope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "feescope",
		Short:        "Multichain fee event indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the indexing loops and query API",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	runCmd.Flags().Bool("api-enabled", true, "serve the query API")
	runCmd.Flags().String("api-listen", ":8080", "query API listen address")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Re-index a historic block range for one chain",
		Long: "Re-index a bounded block range for one configured chain without touching " +
			"the live watermark. Store-side dedup absorbs any overlap with already " +
			"indexed blocks; skipped ranges fully covered by the range are marked resolved.",
		RunE: runBackfill,
	}

	backfillCmd.Flags().Uint64("chain-id", 0, "chain to backfill")
	backfillCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	backfillCmd.Flags().Uint64("to", 0, "end block (inclusive)")
	backfillCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	backfillCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(backfillCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
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

	g, ctx := errgroup.WithContext(ctx)

	for _, src := range cfg.Sources {
		runner, client, err := buildRunner(ctx, src, store, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		logger.Info("source configured",
			zap.Uint64("chain_id", src.ChainID),
			zap.String("contract", src.Contract),
			zap.Uint64("start_block", src.StartBlock),
			zap.Uint64("end_block", src.EndBlock),
			zap.Uint64("chunk_size", src.ChunkSize),
			zap.Uint64("finality_depth", src.FinalityDepth),
		)

		g.Go(func() error {
			return runner.Run(ctx)
		})
	}

	if cfg.APIEnabled {
		server := api.NewServer(cfg.APIListen, store, logger)
		g.Go(func() error {
			return server.Start(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func buildRunner(ctx context.Context, src config.SourceConfig, store *postgres.Store, logger *zap.Logger) (*indexer.Runner, *chain.Client, error) {
	client, err := chain.NewClient(ctx, src.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc for chain %d: %w", src.ChainID, err)
	}

	// The RPC endpoint must actually serve the configured chain.
	remoteID, err := client.GetChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("get chain id for chain %d: %w", src.ChainID, err)
	}
	if !remoteID.IsUint64() || remoteID.Uint64() != src.ChainID {
		client.Close()
		return nil, nil, fmt.Errorf("rpc serves chain %s, config says %d", remoteID, src.ChainID)
	}

	source, err := chain.NewSource(client, src.ChainID, common.HexToAddress(src.Contract), logger)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		ChainID:       src.ChainID,
		StartBlock:    src.StartBlock,
		EndBlock:      src.EndBlock,
		ChunkSize:     src.ChunkSize,
		FinalityDepth: src.FinalityDepth,
		PollInterval:  src.PollInterval,
		MaxAttempts:   src.MaxAttempts,
		RetryBackoff:  src.RetryBackoff,
	}, source, store, logger)

	return runner, client, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

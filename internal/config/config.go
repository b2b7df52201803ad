package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SourceConfig describes one chain to index.
type SourceConfig struct {
	ChainID       uint64        `mapstructure:"chain-id"`
	RPCURL        string        `mapstructure:"rpc"`
	Contract      string        `mapstructure:"contract"`
	StartBlock    uint64        `mapstructure:"start-block"`
	EndBlock      uint64        `mapstructure:"end-block"` // 0 means continuous
	ChunkSize     uint64        `mapstructure:"chunk-size"`
	FinalityDepth uint64        `mapstructure:"finality-depth"`
	PollInterval  time.Duration `mapstructure:"poll-interval"`
	MaxAttempts   int           `mapstructure:"max-attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry-backoff"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	PGDSN      string
	APIEnabled bool
	APIListen  string
	LogLevel   string
	Sources    []SourceConfig
}

// Per-source defaults applied when a field is omitted.
const (
	DefaultChunkSize     = 2000
	DefaultFinalityDepth = 64
	DefaultPollInterval  = 12 * time.Second
	DefaultMaxAttempts   = 10
	DefaultRetryBackoff  = 5 * time.Second
)

// Load merges config file, environment variables, and flags into Config.
// Sources are declared in the config file only.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api-enabled", true)
	v.SetDefault("api-listen", ":8080")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var sources []SourceConfig
	if err := v.UnmarshalKey("sources", &sources); err != nil {
		return Config{}, fmt.Errorf("parse sources: %w", err)
	}

	cfg := Config{
		PGDSN:      v.GetString("pg-dsn"),
		APIEnabled: v.GetBool("api-enabled"),
		APIListen:  v.GetString("api-listen"),
		LogLevel:   v.GetString("log-level"),
		Sources:    sources,
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.ChunkSize == 0 {
			s.ChunkSize = DefaultChunkSize
		}
		if s.FinalityDepth == 0 {
			s.FinalityDepth = DefaultFinalityDepth
		}
		if s.PollInterval <= 0 {
			s.PollInterval = DefaultPollInterval
		}
		if s.MaxAttempts <= 0 {
			s.MaxAttempts = DefaultMaxAttempts
		}
		if s.RetryBackoff <= 0 {
			s.RetryBackoff = DefaultRetryBackoff
		}
	}
}

// Validate checks the configuration before any loop starts.
func (c Config) Validate() error {
	if c.PGDSN == "" {
		return fmt.Errorf("pg-dsn is required")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	seen := make(map[uint64]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		if s.ChainID == 0 {
			return fmt.Errorf("source %d: chain-id is required", i)
		}
		if _, dup := seen[s.ChainID]; dup {
			return fmt.Errorf("duplicate source for chain %d", s.ChainID)
		}
		seen[s.ChainID] = struct{}{}

		if s.RPCURL == "" {
			return fmt.Errorf("source %d: rpc url is required", s.ChainID)
		}
		if !common.IsHexAddress(s.Contract) {
			return fmt.Errorf("source %d: invalid contract address: %q", s.ChainID, s.Contract)
		}
		if s.EndBlock > 0 && s.EndBlock < s.StartBlock {
			return fmt.Errorf("source %d: end-block %d precedes start-block %d", s.ChainID, s.EndBlock, s.StartBlock)
		}
	}
	return nil
}

// SourceByChainID returns the source configured for a chain.
func (c Config) SourceByChainID(chainID uint64) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.ChainID == chainID {
			return s, true
		}
	}
	return SourceConfig{}, false
}

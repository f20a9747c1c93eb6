// Package config loads the indexer's configuration the way
// orbas1-Synnergy's walletserver does: a best-effort .env overlay
// followed by a YAML file, with environment variables taking final
// precedence over whatever the YAML set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every key spec.md §6 enumerates.
type Config struct {
	RPCURL string `yaml:"rpc_url"`
	WSURL  string `yaml:"ws_url"`

	RPCTimeout   time.Duration `yaml:"-"`
	RPCTimeoutMs int           `yaml:"rpc_timeout_ms"`

	RetryAttempts int `yaml:"retry_attempts"`
	RetryDelayMs  int `yaml:"retry_delay_ms"`

	MaxRPCBatch int `yaml:"max_rpc_batch"`

	BlocksPerBatch   int `yaml:"blocks_per_batch"`
	ParallelRequests int `yaml:"parallel_requests"`
	FetchConcurrency int `yaml:"fetch_concurrency"`

	DBWriteInterval    int `yaml:"db_write_interval"`
	WriterConcurrency  int `yaml:"writer_concurrency"`
	WriteBatchSize     int `yaml:"write_batch_size"`
	QueueHighWater     int `yaml:"queue_high_water"`

	CheckpointInterval int `yaml:"checkpoint_interval"`
	TipRefreshInterval int `yaml:"tip_refresh_interval"`
	WSWatchdogMs       int `yaml:"ws_watchdog_ms"`
	PollIntervalMs     int `yaml:"poll_interval_ms"`

	ReceiptConcurrency int `yaml:"receipt_concurrency"`
	TokenProbeFanout   int `yaml:"token_probe_fanout"`

	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`
}

// Default returns the configuration defaults spec.md §6 names.
func Default() Config {
	return Config{
		RPCTimeoutMs:       60000,
		RetryAttempts:      3,
		RetryDelayMs:       500,
		MaxRPCBatch:        50,
		BlocksPerBatch:     100,
		ParallelRequests:   20,
		FetchConcurrency:   2,
		DBWriteInterval:    100,
		WriterConcurrency:  15,
		WriteBatchSize:     200,
		QueueHighWater:     50000,
		CheckpointInterval: 100,
		TipRefreshInterval: 200,
		WSWatchdogMs:       60000,
		PollIntervalMs:     100,
		ReceiptConcurrency: 15,
		TokenProbeFanout:   3,
		DBDriver:           "sqlite",
		DBDSN:              "indexer.db",
	}
}

// Load overlays a .env file (if present), then a YAML config file (if
// path is non-empty), then environment variables, onto the defaults.
// Missing required fields (rpc_url, db_dsn) fail fast, per spec §7's
// "Configuration" error kind.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		// A malformed .env is not fatal; the process can still run on
		// pure environment variables.
		_ = err
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("reading config %s: %w", yamlPath, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", yamlPath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.RPCTimeoutMs <= 0 {
		cfg.RPCTimeoutMs = 60000
	}
	cfg.RPCTimeout = time.Duration(cfg.RPCTimeoutMs) * time.Millisecond

	if cfg.RPCURL == "" {
		return Config{}, fmt.Errorf("config: rpc_url is required")
	}
	if cfg.DBDSN == "" {
		return Config{}, fmt.Errorf("config: db_dsn is required")
	}
	if cfg.WSURL == "" {
		cfg.WSURL = deriveWSURL(cfg.RPCURL)
	}
	return cfg, nil
}

// deriveWSURL substitutes the URL scheme the way spec §6 describes when
// ws_url is absent: http -> ws, https -> wss.
func deriveWSURL(rpcURL string) string {
	switch {
	case len(rpcURL) >= 8 && rpcURL[:8] == "https://":
		return "wss://" + rpcURL[8:]
	case len(rpcURL) >= 7 && rpcURL[:7] == "http://":
		return "ws://" + rpcURL[7:]
	default:
		return ""
	}
}

func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	intv := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("INDEXER_RPC_URL", &cfg.RPCURL)
	str("INDEXER_WS_URL", &cfg.WSURL)
	str("INDEXER_DB_DRIVER", &cfg.DBDriver)
	str("INDEXER_DB_DSN", &cfg.DBDSN)
	intv("INDEXER_RPC_TIMEOUT_MS", &cfg.RPCTimeoutMs)
	intv("INDEXER_RETRY_ATTEMPTS", &cfg.RetryAttempts)
	intv("INDEXER_RETRY_DELAY_MS", &cfg.RetryDelayMs)
	intv("INDEXER_MAX_RPC_BATCH", &cfg.MaxRPCBatch)
	intv("INDEXER_BLOCKS_PER_BATCH", &cfg.BlocksPerBatch)
	intv("INDEXER_PARALLEL_REQUESTS", &cfg.ParallelRequests)
	intv("INDEXER_FETCH_CONCURRENCY", &cfg.FetchConcurrency)
	intv("INDEXER_WRITER_CONCURRENCY", &cfg.WriterConcurrency)
	intv("INDEXER_WRITE_BATCH_SIZE", &cfg.WriteBatchSize)
	intv("INDEXER_QUEUE_HIGH_WATER", &cfg.QueueHighWater)
	intv("INDEXER_CHECKPOINT_INTERVAL", &cfg.CheckpointInterval)
	intv("INDEXER_TIP_REFRESH_INTERVAL", &cfg.TipRefreshInterval)
	intv("INDEXER_WS_WATCHDOG_MS", &cfg.WSWatchdogMs)
	intv("INDEXER_POLL_INTERVAL_MS", &cfg.PollIntervalMs)
	intv("INDEXER_RECEIPT_CONCURRENCY", &cfg.ReceiptConcurrency)
	intv("INDEXER_TOKEN_PROBE_FANOUT", &cfg.TokenProbeFanout)
}

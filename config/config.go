// Package config resolves the indexer's runtime settings the way the
// teacher's env package does: flags and OS environment first, with an
// optional viper-backed config file overlay when CONFIG_FILE is set.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every knob named in the external interfaces surface plus
// the ambient knobs (DB pool sizing, metrics, logging, checkpoint
// behavior) a complete process needs that the distilled interface list
// does not enumerate.
type Config struct {
	AppName string
	Debug   bool
	LogLevel string

	DatabaseURL    string
	DBMinIdleConns int
	DBPoolSize     int

	RPCPrimary []string
	RPCBackup  []string
	LCDPrimary []string
	LCDBackup  []string

	FactoryAddr string
	RouterAddr  string

	BlockProcConcurrency int
	BlockProcMaxTasks    int
	PipelineDepth        int
	PollSleepMs          int
	MaxBlocks            int
	CheckpointOnError    bool

	TradesBatchMax   int
	TradesBatchWaitMs int
	StateBatchMax    int
	StateBatchWaitMs int
	OHLCVBatchMax    int
	OHLCVBatchWaitMs int

	MatrixRollupSec         int
	HoldersRefreshSec       int
	HoldersBatchSize        int
	MaxHolderPagesPerCycle  int
	LCDPageConcurrency      int
	PriceSimSec             int
	PriceJobConcurrency     int
	FXSec                   int
	PartitionsSec           int
	PartitionMonthsAhead    int
	MetaRefreshSec          int
	MetaBackfill            bool
	MetaBackfillBatch       int
	MetaBackfillSleepMs     int
	MetaConcurrency         int
	UseChainRegistry        bool
	RegistryPollSec         int
	RegistryPollBatch       int
	TokenMatrixScaling      bool

	NotifyMinReconnectMs int
	NotifyMaxReconnectMs int

	CMCAPIKey  string
	CMCSymbol  string
	CMCConvert string

	MetricsAddr string
}

// Load resolves configuration from flags/env, applying a viper-backed
// config file overlay when configFile (or CONFIG_FILE) is non-empty.
// .env is loaded first, best-effort, mirroring the teacher's reliance
// on godotenv for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	appName := flag.String("app_name", "zigscan-amm-indexer", "application name")
	debug := flag.Bool("debug", false, "debug mode")
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "optional config file (yaml/json/toml)")
	flag.Parse()

	cfg := &Config{
		AppName:  *appName,
		Debug:    *debug,
		LogLevel: envString("LOG_LEVEL", "info"),

		DatabaseURL:    envString("DATABASE_URL", ""),
		DBMinIdleConns: envInt("DB_MIN_IDLE_CONNS", 10),
		DBPoolSize:     envInt("DB_POOL_SIZE", 20),

		RPCPrimary: envList("RPC_PRIMARY"),
		RPCBackup:  envList("RPC_BACKUP"),
		LCDPrimary: envList("LCD_PRIMARY"),
		LCDBackup:  envList("LCD_BACKUP"),

		FactoryAddr: envString("FACTORY_ADDR", ""),
		RouterAddr:  envString("ROUTER_ADDR", ""),

		BlockProcConcurrency: envInt("BLOCK_PROC_CONCURRENCY", 12),
		BlockProcMaxTasks:    envInt("BLOCK_PROC_MAX_TASKS", 4096),
		PipelineDepth:        envInt("PIPELINE_DEPTH", 3),
		PollSleepMs:          envInt("POLL_SLEEP_MS", 1000),
		MaxBlocks:            envInt("MAX_BLOCKS", 0),
		CheckpointOnError:    envBool("CHECKPOINT_ON_ERROR", true),

		TradesBatchMax:    envInt("TRADES_BATCH_MAX", 800),
		TradesBatchWaitMs: envInt("TRADES_BATCH_WAIT_MS", 120),
		StateBatchMax:     envInt("STATE_BATCH_MAX", 400),
		StateBatchWaitMs:  envInt("STATE_BATCH_WAIT_MS", 120),
		OHLCVBatchMax:     envInt("OHLCV_BATCH_MAX", 600),
		OHLCVBatchWaitMs:  envInt("OHLCV_BATCH_WAIT_MS", 120),

		MatrixRollupSec:        envInt("MATRIX_ROLLUP_SEC", 60),
		HoldersRefreshSec:      envInt("HOLDERS_REFRESH_SEC", 300),
		HoldersBatchSize:       envInt("HOLDERS_BATCH_SIZE", 100),
		MaxHolderPagesPerCycle: envInt("MAX_HOLDER_PAGES_PER_CYCLE", 50),
		LCDPageConcurrency:     envInt("LCD_PAGE_CONCURRENCY", 4),
		PriceSimSec:            envInt("PRICE_SIM_SEC", 8),
		PriceJobConcurrency:    envInt("PRICE_JOB_CONCURRENCY", 8),
		FXSec:                  envInt("FX_SEC", 36),
		PartitionsSec:          envInt("PARTITIONS_SEC", 1800),
		PartitionMonthsAhead:   envInt("PARTITION_MONTHS_AHEAD", 2),
		MetaRefreshSec:         envInt("META_REFRESH_SEC", 600),
		MetaBackfill:           envBool("META_BACKFILL", false),
		MetaBackfillBatch:      envInt("META_BACKFILL_BATCH", 50),
		MetaBackfillSleepMs:    envInt("META_BACKFILL_SLEEP_MS", 200),
		MetaConcurrency:        envInt("META_CONCURRENCY", 4),
		UseChainRegistry:       envBool("USE_CHAIN_REGISTRY", false),
		RegistryPollSec:        envInt("REGISTRY_POLL_SEC", 1800),
		RegistryPollBatch:      envInt("REGISTRY_POLL_BATCH", 50),
		TokenMatrixScaling:     envBool("TOKEN_MATRIX_SCALING_HEURISTIC", true),

		NotifyMinReconnectMs: envInt("NOTIFY_MIN_RECONNECT_MS", 10000),
		NotifyMaxReconnectMs: envInt("NOTIFY_MAX_RECONNECT_MS", 60000),

		CMCAPIKey:  envString("CMC_API_KEY", ""),
		CMCSymbol:  envString("CMC_SYMBOL", "ZIG"),
		CMCConvert: envString("CMC_CONVERT", "USD"),

		MetricsAddr: envString("METRICS_ADDR", ":9100"),
	}

	if *configFile != "" {
		if err := applyConfigFile(cfg, *configFile); err != nil {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}

	return cfg, nil
}

// applyConfigFile overlays viper-sourced values on top of the env
// defaults already resolved, grounded on the teacher's NewViperConfig:
// same AddConfigPath/SetConfigFile/SetConfigType split on the supplied
// path, but mapped onto the flatter key namespace this project uses.
func applyConfigFile(cfg *Config, path string) error {
	parts := strings.Split(path, "/")
	file := parts[len(parts)-1]
	ext := strings.TrimPrefix(file[strings.LastIndex(file, "."):], ".")

	dir := "./"
	if len(parts) > 1 {
		dir = strings.Join(parts[:len(parts)-1], "/")
	}

	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigFile(file)
	v.SetConfigType(ext)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	if v.IsSet("database.url") {
		cfg.DatabaseURL = v.GetString("database.url")
	}
	if v.IsSet("database.minIdleConns") {
		cfg.DBMinIdleConns = v.GetInt("database.minIdleConns")
	}
	if v.IsSet("database.poolSize") {
		cfg.DBPoolSize = v.GetInt("database.poolSize")
	}
	if v.IsSet("app.debug") {
		cfg.Debug = v.GetBool("app.debug")
	}
	if v.IsSet("app.logLevel") {
		cfg.LogLevel = v.GetString("app.logLevel")
	}
	if v.IsSet("metrics.addr") {
		cfg.MetricsAddr = v.GetString("metrics.addr")
	}

	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// envList splits a comma-separated environment variable into a list of
// non-empty, trimmed elements, used for the RPC/LCD endpoint lists that
// support failover.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

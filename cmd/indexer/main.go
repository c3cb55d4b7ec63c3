package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/sirupsen/logrus"

	"github.com/zigscan/amm-indexer/batch"
	"github.com/zigscan/amm-indexer/chain"
	"github.com/zigscan/amm-indexer/checkpoint"
	"github.com/zigscan/amm-indexer/config"
	"github.com/zigscan/amm-indexer/fasttrack"
	"github.com/zigscan/amm-indexer/fx"
	"github.com/zigscan/amm-indexer/holders"
	"github.com/zigscan/amm-indexer/metrics"
	"github.com/zigscan/amm-indexer/notify"
	"github.com/zigscan/amm-indexer/partition"
	"github.com/zigscan/amm-indexer/pool"
	"github.com/zigscan/amm-indexer/priceindex"
	"github.com/zigscan/amm-indexer/priceticker"
	"github.com/zigscan/amm-indexer/processor"
	"github.com/zigscan/amm-indexer/rollup"
	"github.com/zigscan/amm-indexer/token"
	"github.com/zigscan/amm-indexer/trade"
)

// poolRegistryCacheSize bounds the pool package's in-process Pool
// cache; pools are created rarely enough that this never meaningfully
// evicts in practice.
const poolRegistryCacheSize = 4096

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	logger.WithField("app", cfg.AppName).Info("starting")

	db, err := connectDB(cfg)
	if err != nil {
		logger.WithError(err).Fatal("connecting to database")
	}
	defer db.Close()

	m := metrics.New()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	chainClient := chain.NewClient(cfg.RPCPrimary, cfg.RPCBackup, cfg.LCDPrimary, cfg.LCDBackup)

	poolRepo := pool.NewRepository(db, poolRegistryCacheSize)
	reservesFetcher := pool.NewReservesFetcher(chainClient)
	tokenRepo := token.NewRepository(db)

	var assetRegistry *token.AssetRegistry
	if cfg.UseChainRegistry {
		assetRegistry = token.NewAssetRegistry(cfg.RegistryPollBatch, logger)
	}
	tokenResolver := token.NewResolver(chainClient, tokenRepo, assetRegistry)
	priceRepo := priceindex.NewRepository(db)
	tradeRepo := trade.NewRepository(db)
	checkpointStore := checkpoint.NewStore(db)
	publisher := notify.NewPublisher(db, logger)

	tradeWriter := batch.NewTradeWriter(db,
		cfg.TradesBatchMax, time.Duration(cfg.TradesBatchWaitMs)*time.Millisecond,
		logger, batchMetrics(m, "trades"))
	poolStateWriter := batch.NewPoolStateWriter(db,
		cfg.StateBatchMax, time.Duration(cfg.StateBatchWaitMs)*time.Millisecond,
		logger, batchMetrics(m, "pool_state"))
	candleWriter := batch.NewCandleWriter(db,
		cfg.OHLCVBatchMax, time.Duration(cfg.OHLCVBatchWaitMs)*time.Millisecond,
		logger, batchMetrics(m, "candles"))

	procDeps := &processor.Deps{
		Chain:           chainClient,
		Pools:           poolRepo,
		Reserves:        reservesFetcher,
		Tokens:          tokenRepo,
		Resolver:        tokenResolver,
		Trades:          tradeWriter,
		PoolStates:      poolStateWriter,
		Candles:         candleWriter,
		Prices:          priceRepo,
		Publisher:       publisher,
		Checkpoint:      checkpointStore,
		Metrics:         m,
		Logger:          logger,
		FactoryAddr:     cfg.FactoryAddr,
		Concurrency:     cfg.BlockProcConcurrency,
		MetaConcurrency: cfg.MetaConcurrency,
		MaxPendingTasks: cfg.BlockProcMaxTasks,
	}
	driver := processor.NewDriver(procDeps, cfg.PipelineDepth, time.Duration(cfg.PollSleepMs)*time.Millisecond, cfg.CheckpointOnError)

	holdersSweeper := holders.NewSweeper(db, chainClient, cfg.LCDPageConcurrency, cfg.MaxHolderPagesPerCycle, cfg.HoldersBatchSize, logger)
	rollupEngine := rollup.NewEngine(db, m, logger, cfg.TokenMatrixScaling)
	priceTicker := priceticker.NewTicker(poolRepo, tokenRepo, reservesFetcher, priceRepo, m, logger, time.Duration(cfg.PriceSimSec)*time.Second)
	fxFetcher := fx.NewFetcher(db, cfg.CMCAPIKey, cfg.CMCSymbol, cfg.CMCConvert, logger)
	partitionMaintainer := partition.NewMaintainer(db, cfg.PartitionMonthsAhead, logger)

	notifyListener := notify.NewListener(cfg.DatabaseURL,
		time.Duration(cfg.NotifyMinReconnectMs)*time.Millisecond,
		time.Duration(cfg.NotifyMaxReconnectMs)*time.Millisecond,
		logger)
	fastTrack := fasttrack.NewListener(fasttrack.Deps{
		Notify:    notifyListener,
		Resolver:  tokenResolver,
		TokenRepo: tokenRepo,
		Holders:   holdersSweeper,
		Rollup:    rollupEngine,
		Trades:    tradeRepo,
		Reserves:  reservesFetcher,
		Prices:    priceRepo,
		Metrics:   m,
		Logger:    logger,
	})

	metricsServer := metrics.NewServer(cfg.MetricsAddr, logger)

	runners := []func(context.Context) error{
		func(ctx context.Context) error { return metricsServer.Run(ctx) },
		func(ctx context.Context) error { return driver.Run(ctx) },
		func(ctx context.Context) error { return fastTrack.Run(ctx, processor.PairCreatedChannel) },
		func(ctx context.Context) error { runTicker(ctx, time.Duration(cfg.MatrixRollupSec)*time.Second, logger, "rollup", rollupEngine.RunCycle); return nil },
		func(ctx context.Context) error { runTicker(ctx, time.Duration(cfg.HoldersRefreshSec)*time.Second, logger, "holders", holdersSweeper.RunCycle); return nil },
		func(ctx context.Context) error { priceTicker.Run(ctx); return nil },
		func(ctx context.Context) error { fxFetcher.Run(ctx, time.Duration(cfg.FXSec)*time.Second); return nil },
		func(ctx context.Context) error { partitionMaintainer.Run(ctx, time.Duration(cfg.PartitionsSec)*time.Second); return nil },
	}
	if assetRegistry != nil {
		runners = append(runners, func(ctx context.Context) error {
			assetRegistry.Run(ctx, time.Duration(cfg.RegistryPollSec)*time.Second)
			return nil
		})
	}

	done := make(chan struct{}, len(runners))
	for _, run := range runners {
		go func(run func(context.Context) error) {
			if err := run(ctx); err != nil {
				logger.WithError(err).Error("component exited with error")
			}
			done <- struct{}{}
		}(run)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, draining")

	if err := tradeWriter.Drain(); err != nil {
		logger.WithError(err).Error("draining trade writer")
	}
	if err := poolStateWriter.Drain(); err != nil {
		logger.WithError(err).Error("draining pool state writer")
	}
	if err := candleWriter.Drain(); err != nil {
		logger.WithError(err).Error("draining candle writer")
	}

	for i := 0; i < len(runners); i++ {
		<-done
	}
	logger.Info("shutdown complete")
}

// runTicker runs fn on a fixed interval until ctx is cancelled, used
// by the rollup and holders cycles which don't own their own loop.
func runTicker(ctx context.Context, interval time.Duration, logger *logrus.Entry, name string, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				logger.WithError(err).WithField("component", name).Warn("cycle failed")
			}
		}
	}
}

func batchMetrics(m *metrics.Metrics, queue string) *batch.Metrics {
	return &batch.Metrics{
		QueueSize:   m.BatchQueueSize.WithLabelValues(queue),
		FlushMs:     m.BatchFlushMs.WithLabelValues(queue),
		FlushErrors: m.BatchFlushErrors.WithLabelValues(queue),
	}
}

func connectDB(cfg *config.Config) (*pg.DB, error) {
	opts, err := pg.ParseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("main: parsing DATABASE_URL: %w", err)
	}
	opts.PoolSize = cfg.DBPoolSize
	opts.MinIdleConns = cfg.DBMinIdleConns
	return pg.Connect(opts), nil
}

func newLogger(cfg *config.Config) *logrus.Entry {
	l := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		l.SetLevel(level)
	}
	if cfg.Debug {
		l.SetLevel(logrus.DebugLevel)
	}
	l.SetFormatter(&logrus.JSONFormatter{})
	return logrus.NewEntry(l)
}

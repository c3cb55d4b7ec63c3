package processor

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zigscan/amm-indexer/batch"
	"github.com/zigscan/amm-indexer/chain"
	"github.com/zigscan/amm-indexer/checkpoint"
	"github.com/zigscan/amm-indexer/models"
	"github.com/zigscan/amm-indexer/notify"
	"github.com/zigscan/amm-indexer/pool"
	"github.com/zigscan/amm-indexer/priceindex"
	"github.com/zigscan/amm-indexer/token"
)

// This file exercises the block processor end-to-end against a real
// Postgres (grounded on core/main_test.go's TestKit: a live database
// plus a fake node server, not a mocked interface) covering spec
// scenarios S1-S3 — pair creation with a same-tx provide, a swap on the
// existing pool, and idempotent replay of that swap.
//
// Requires DATABASE_URL (loaded from .env if present, same as
// production); skipped otherwise.

const (
	scenarioFactory = "zig14ctorfactoryfactoryfactoryfactoryfact0"
	scenarioPool    = "zig1poo1poo1poo1poo1poo1poo1poo1poo1poo1p1"
)

func scenarioDB(t *testing.T) *pg.DB {
	_ = godotenv.Load("../.env")
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping processor scenario tests")
	}

	opts, err := pg.ParseURL(url)
	require.NoError(t, err)
	db := pg.Connect(opts)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`TRUNCATE tokens, pools, trades, pool_state, prices, price_ticks, ohlcv_1m RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

// b64 mirrors the Tendermint/CometBFT convention of base64-wrapping
// every event attribute key and value.
func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func wasmEvent(attrs map[string]string) string {
	var pairs []string
	for k, v := range attrs {
		pairs = append(pairs, fmt.Sprintf(`{"key":"%s","value":"%s"}`, b64(k), b64(v)))
	}
	joined := ""
	for i, p := range pairs {
		if i > 0 {
			joined += ","
		}
		joined += p
	}
	return fmt.Sprintf(`{"type":"wasm","attributes":[%s]}`, joined)
}

// newFakeNode serves the handful of RPC/LCD paths the block processor
// touches across S1/S2: /block and /block_results for two heights, the
// TKN bank-metadata lookup, and the pair contract's smart "pool" query.
// It returns the atomic.Value backing that last query's response, so
// the test can restage it as the pool's reserves change.
func newFakeNode(t *testing.T) (*httptest.Server, *atomic.Value) {
	mux := http.NewServeMux()

	mux.HandleFunc("/block", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("height") {
		case "100":
			fmt.Fprintf(w, `{"result":{"block":{"header":{"time":"2024-01-01T00:00:30Z"},"data":{"txs":["%s"]}}}}`, base64.StdEncoding.EncodeToString([]byte("tx-height-100")))
		case "101":
			fmt.Fprintf(w, `{"result":{"block":{"header":{"time":"2024-01-01T00:00:45Z"},"data":{"txs":["%s"]}}}}`, base64.StdEncoding.EncodeToString([]byte("tx-height-101")))
		default:
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/block_results", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("height") {
		case "100":
			createPair := wasmEvent(map[string]string{
				"action":            "create_pair",
				"pair":              "TKN-uzig",
				"pair_type":         "xyk",
				"msg_index":         "0",
				"_contract_address": scenarioFactory,
			})
			register := wasmEvent(map[string]string{
				"action":             "register",
				"pair_contract_addr": scenarioPool,
				"msg_index":          "0",
				"_contract_address":  scenarioFactory,
			})
			provide := wasmEvent(map[string]string{
				"action":                "provide_liquidity",
				"_contract_address":     scenarioPool,
				"reserve_asset1_denom":  "TKN",
				"reserve_asset1_amount": "1000000000",
				"reserve_asset2_denom":  "uzig",
				"reserve_asset2_amount": "2000000",
				"assets":                "1000000000TKN,2000000uzig",
				"msg_index":             "0",
			})
			fmt.Fprintf(w, `{"result":{"txs_results":[{"events":[%s,%s,%s]}]}}`, createPair, register, provide)
		case "101":
			swap := wasmEvent(map[string]string{
				"action":            "swap",
				"_contract_address": scenarioPool,
				"offer_asset":       "uzig",
				"offer_amount":      "500000",
				"ask_asset":         "TKN",
				"return_amount":     "240000000",
				"reserves":          "TKN:760000000,uzig:2500000",
				"msg_index":         "0",
			})
			fmt.Fprintf(w, `{"result":{"txs_results":[{"events":[%s]}]}}`, swap)
		default:
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/cosmos/bank/v1beta1/denoms_metadata/TKN", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"metadata":{"name":"Token","symbol":"TKN","denom_units":[{"denom":"TKN","exponent":6}]}}`)
	})

	// The live pool query reflects whatever reserves were last staged by
	// the test via stageReserves, so it can answer truthfully for both
	// S1 (pre-swap) and S2 (post-swap) without a wall-clock wait for the
	// ReservesFetcher's TTL to expire.
	var reservesJSON atomic.Value
	reservesJSON.Store(`{"data":{"assets":[` +
		`{"info":{"token":{"contract_addr":"TKN"}},"amount":"1000000000"},` +
		`{"info":{"native_token":{"denom":"uzig"}},"amount":"2000000"}` +
		`]}}`)

	mux.HandleFunc("/cosmwasm/wasm/v1/contract/"+scenarioPool+"/smart/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, reservesJSON.Load().(string))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &reservesJSON
}

type scenarioKit struct {
	db          *pg.DB
	deps        *Deps
	chainClient *chain.Client
	tokens      *token.Repository
	pools       *pool.Repository
	prices      *priceindex.Repository
	trades      *batch.TradeWriter
	states      *batch.PoolStateWriter
	candles     *batch.CandleWriter
	reservesRaw *atomic.Value
}

func newScenarioKit(t *testing.T) *scenarioKit {
	db := scenarioDB(t)
	node, reservesRaw := newFakeNode(t)

	logger := logrus.NewEntry(logrus.New())
	chainClient := chain.NewClient([]string{node.URL}, nil, []string{node.URL}, nil)

	tokens := token.NewRepository(db)
	pools := pool.NewRepository(db, 64)
	prices := priceindex.NewRepository(db)
	resolver := token.NewResolver(chainClient, tokens, nil)
	publisher := notify.NewPublisher(db, logger)

	trades := batch.NewTradeWriter(db, 100, time.Hour, logger, nil)
	states := batch.NewPoolStateWriter(db, 100, time.Hour, logger, nil)
	candles := batch.NewCandleWriter(db, 100, time.Hour, logger, nil)

	deps := &Deps{
		Chain:           chainClient,
		Pools:           pools,
		Reserves:        pool.NewReservesFetcher(chainClient),
		Tokens:          tokens,
		Resolver:        resolver,
		Trades:          trades,
		PoolStates:      states,
		Candles:         candles,
		Prices:          prices,
		Publisher:       publisher,
		Checkpoint:      checkpoint.NewStore(db),
		Logger:          logger,
		FactoryAddr:     scenarioFactory,
		Concurrency:     4,
		MetaConcurrency: 2,
		MaxPendingTasks: 1 << 20,
	}

	return &scenarioKit{
		db: db, deps: deps, chainClient: chainClient,
		tokens: tokens, pools: pools, prices: prices,
		trades: trades, states: states, candles: candles,
		reservesRaw: reservesRaw,
	}
}

func (k *scenarioKit) drain(t *testing.T) {
	require.NoError(t, k.trades.Drain())
	require.NoError(t, k.states.Drain())
	require.NoError(t, k.candles.Drain())
}

// stageReserves swaps in a fresh ReservesFetcher and points the fake
// node's live pool query at raw, so the next Process call observes raw
// immediately instead of the previous call's 2s-TTL cached value.
func (k *scenarioKit) stageReserves(raw string) {
	k.reservesRaw.Store(raw)
	k.deps.Reserves = pool.NewReservesFetcher(k.chainClient)
}

// TestScenarios_PairCreationSwapAndReplay runs S1, S2, and S3 in
// sequence against the same database and pool, matching spec.md's
// "given pool P1 as in S1" / "re-run S2 at the same height" framing.
func TestScenarios_PairCreationSwapAndReplay(t *testing.T) {
	k := newScenarioKit(t)
	ctx := context.Background()

	// Pre-seed TKN's exponent. FindOrCreateStub's OnConflict DO NOTHING
	// leaves this row untouched, and Phase 3's metadata refresh resolves
	// the same value independently (see the TKN denoms_metadata stub),
	// so Phase 2's price math for height 100 sees the correct exponent
	// without waiting on that same height's own Phase 3 to run first.
	seedTKN := &models.Token{Denom: "TKN", Kind: models.TokenKindCW20, Exponent: 6}
	_, err := k.db.Model(seedTKN).Insert()
	require.NoError(t, err)

	// S1 — pair creation with same-tx provide.
	require.NoError(t, NewHeight(100, k.deps).Process(ctx))
	k.drain(t)

	p, err := k.pools.ByPairContract(scenarioPool)
	require.NoError(t, err)
	assert.True(t, p.IsNativeQuote)
	assert.Equal(t, models.PairTypeXYK, p.PairType)

	var provideCount int
	_, err = k.db.QueryOne(pg.Scan(&provideCount),
		"SELECT count(*) FROM trades WHERE pool_id = ? AND action = 'provide'", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, provideCount, "testable property 10: the pool must exist before its same-tx provide trade is written")

	var state models.PoolState
	require.NoError(t, k.db.Model(&state).Where("pool_id = ?", p.ID).Select())
	assert.Equal(t, "1000000000", state.ReserveBaseBase)
	assert.Equal(t, "2000000", state.ReserveQuoteBase)

	price, err := k.prices.LatestByPool(p.ID)
	require.NoError(t, err)
	wantPrice, err := decimal.NewFromString("0.002")
	require.NoError(t, err)
	assert.True(t, price.PriceNative.Equal(wantPrice))

	// S2 — swap on the existing pool.
	k.stageReserves(`{"data":{"assets":[` +
		`{"info":{"token":{"contract_addr":"TKN"}},"amount":"760000000"},` +
		`{"info":{"native_token":{"denom":"uzig"}},"amount":"2500000"}` +
		`]}}`)
	require.NoError(t, NewHeight(101, k.deps).Process(ctx))
	k.drain(t)

	var swapCount int
	_, err = k.db.QueryOne(pg.Scan(&swapCount), "SELECT count(*) FROM trades WHERE pool_id = ? AND action = 'swap'", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, swapCount)

	require.NoError(t, k.db.Model(&state).Where("pool_id = ?", p.ID).Select())
	assert.Equal(t, "760000000", state.ReserveBaseBase)
	assert.Equal(t, "2500000", state.ReserveQuoteBase)

	var candle models.Candle1m
	require.NoError(t, k.db.Model(&candle).Where("pool_id = ?", p.ID).Order("minute ASC").Limit(1).Select())
	swapMinute := candle.Minute
	assert.Equal(t, int64(1), candle.TradeCount)
	volumeAfterS2 := candle.VolumeNative

	// S3 — idempotency on replay: re-run S2 at the same height.
	require.NoError(t, NewHeight(101, k.deps).Process(ctx))
	k.drain(t)

	var swapCountAfterReplay int
	_, err = k.db.QueryOne(pg.Scan(&swapCountAfterReplay), "SELECT count(*) FROM trades WHERE pool_id = ? AND action = 'swap'", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, swapCountAfterReplay, "testable property 2: replaying a height must not create a new Trade row")

	require.NoError(t, k.db.Model(&state).Where("pool_id = ?", p.ID).Select())
	assert.Equal(t, "760000000", state.ReserveBaseBase, "testable property 2: PoolState must be identical after replay")
	assert.Equal(t, "2500000", state.ReserveQuoteBase)

	require.NoError(t, k.db.Model(&candle).Where("pool_id = ? AND minute = ?", p.ID, swapMinute).Select())
	assert.True(t, candle.VolumeNative.Equal(volumeAfterS2), "candle volume must not double-count on replay")
	assert.Equal(t, int64(1), candle.TradeCount, "candle trade_count must not double-count on replay")
}

package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/zigscan/amm-indexer/batch"
	"github.com/zigscan/amm-indexer/chain"
	"github.com/zigscan/amm-indexer/event"
	"github.com/zigscan/amm-indexer/models"
	"github.com/zigscan/amm-indexer/pool"
)

// Height processes a single chain height through phases 1-3, per
// spec §4.D.
type Height struct {
	height uint64
	deps   *Deps
}

// NewHeight constructs a Height bound to deps.
func NewHeight(height uint64, deps *Deps) *Height {
	return &Height{height: height, deps: deps}
}

// Process fetches the block and its results, extracts events, and runs
// pools (phase 1), prefetch (phase 1.5), core tasks (phase 2), and
// low-priority metadata refresh (phase 3) in that order.
func (h *Height) Process(ctx context.Context) error {
	block, results, err := h.fetchBlockAndResults(ctx)
	if err != nil {
		return err
	}

	blockTime, err := time.Parse(time.RFC3339Nano, block.Result.Block.Header.Time)
	if err != nil {
		return fmt.Errorf("processor: parsing block time at height %d: %w", h.height, err)
	}

	rawTxs := block.Result.Block.Data.Txs
	txResults := results.Result.TxsResults

	txs := make([]txEvents, 0, len(rawTxs))
	for i, rawTx := range rawTxs {
		var evs []chain.Event
		if i < len(txResults) {
			evs = txResults[i].Events
		}
		tx, err := extractTxEvents(rawTx, evs)
		if err != nil {
			return fmt.Errorf("processor: extracting events for tx %d at height %d: %w", i, h.height, err)
		}
		txs = append(txs, tx)
	}

	newDenoms := h.runPhase1Pools(ctx, txs, h.height, blockTime)
	h.runPhase1_5Prefetch(txs)
	if err := h.runPhase2CoreTasks(ctx, txs, blockTime); err != nil {
		return err
	}
	h.deps.drainIfOverCap()
	h.runPhase3Metadata(ctx, newDenoms)

	return nil
}

func (h *Height) fetchBlockAndResults(ctx context.Context) (*chain.BlockResponse, *chain.BlockResultsResponse, error) {
	var block *chain.BlockResponse
	var results *chain.BlockResultsResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := h.deps.Chain.Block(gctx, h.height)
		block = b
		return err
	})
	g.Go(func() error {
		r, err := h.deps.Chain.BlockResults(gctx, h.height)
		results = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("processor: fetching height %d: %w", h.height, err)
	}
	return block, results, nil
}

// runPhase1Pools handles every create_pair event across all of this
// height's txs before anything in phase 2 touches a pool, satisfying
// the "pair creation + same-tx liquidity" ordering requirement.
// Returns the set of denoms first seen this height, for phase 3.
func (h *Height) runPhase1Pools(ctx context.Context, txs []txEvents, height uint64, blockTime time.Time) map[string]struct{} {
	newDenoms := make(map[string]struct{})

	for _, tx := range txs {
		for _, cp := range tx.createPairs {
			if cp["_contract_address"] != h.deps.FactoryAddr {
				continue
			}
			if err := h.createPair(tx, cp, height, blockTime, newDenoms); err != nil {
				h.deps.Logger.WithError(err).WithField("height", height).Error("processor: create_pair failed")
			}
		}
	}
	return newDenoms
}

func (h *Height) createPair(tx txEvents, cp event.AttrMap, height uint64, blockTime time.Time, newDenoms map[string]struct{}) error {
	base, quote, err := event.ParsePair(cp["pair"], models.NativeDenom)
	if err != nil {
		return fmt.Errorf("parsing pair %q: %w", cp["pair"], err)
	}

	pairContract := resolvePairContract(tx, msgIndexOf(cp))
	if pairContract == "" {
		return fmt.Errorf("no pair contract resolved for pair %q", cp["pair"])
	}

	baseID, err := h.deps.Tokens.FindOrCreateStub(base)
	if err != nil {
		return fmt.Errorf("stubbing base token %q: %w", base, err)
	}
	quoteID, err := h.deps.Tokens.FindOrCreateStub(quote)
	if err != nil {
		return fmt.Errorf("stubbing quote token %q: %w", quote, err)
	}
	newDenoms[base] = struct{}{}
	newDenoms[quote] = struct{}{}

	isNativeQuote := quote == models.NativeDenom

	p := &models.Pool{
		PairContract:   pairContract,
		BaseTokenID:    baseID,
		QuoteTokenID:   quoteID,
		PairType:       models.PairType(cp["pair_type"]),
		IsNativeQuote:  isNativeQuote,
		FactoryAddress: h.deps.FactoryAddr,
		CreatedHeight:  height,
		CreatedTx:      tx.hash,
		CreatedSigner:  tx.senderByIndex[msgIndexOf(cp)],
		CreatedAt:      blockTime,
	}
	if err := h.deps.Pools.Upsert(p); err != nil {
		return fmt.Errorf("upserting pool %q: %w", pairContract, err)
	}

	h.deps.Publisher.PublishPairCreated(PairCreatedChannel, models.PairCreated{
		PoolID:        p.ID,
		PairContract:  pairContract,
		BaseDenom:     base,
		QuoteDenom:    quote,
		BaseTokenID:   baseID,
		QuoteTokenID:  quoteID,
		IsNativeQuote: isNativeQuote,
	})
	return nil
}

// runPhase1_5Prefetch resolves and caches the pool row for every pair
// contract referenced by a swap/provide/withdraw event, so phase 2's
// fan-out hits the cache instead of the database.
func (h *Height) runPhase1_5Prefetch(txs []txEvents) {
	seen := make(map[string]struct{})
	for _, tx := range txs {
		for _, attrs := range concatAttrMaps(tx.swaps, tx.provides, tx.withdraws) {
			addr := attrs["_contract_address"]
			if addr == "" || addr == h.deps.FactoryAddr {
				continue
			}
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			if _, err := h.deps.Pools.ByPairContract(addr); err != nil {
				h.deps.Logger.WithError(err).WithField("pair_contract", addr).Warn("processor: prefetch pool failed")
			}
		}
	}
}

func concatAttrMaps(lists ...[]event.AttrMap) []event.AttrMap {
	var out []event.AttrMap
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// runPhase2CoreTasks processes every swap/provide/withdraw across all
// txs in a bounded fan-out (default concurrency BLOCK_PROC_CONCURRENCY).
func (h *Height) runPhase2CoreTasks(ctx context.Context, txs []txEvents, blockTime time.Time) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.deps.Concurrency)

	for _, tx := range txs {
		tx := tx
		for _, sw := range tx.swaps {
			sw := sw
			g.Go(func() error {
				h.processSwap(gctx, tx, sw, blockTime)
				return nil
			})
		}
		for _, pr := range tx.provides {
			pr := pr
			g.Go(func() error {
				h.processLiquidity(gctx, tx, pr, blockTime, models.TradeActionProvide)
				return nil
			})
		}
		for _, wd := range tx.withdraws {
			wd := wd
			g.Go(func() error {
				h.processLiquidity(gctx, tx, wd, blockTime, models.TradeActionWithdraw)
				return nil
			})
		}
	}

	return g.Wait()
}

func (h *Height) processSwap(ctx context.Context, tx txEvents, sw event.AttrMap, blockTime time.Time) {
	contract := sw["_contract_address"]
	p, err := h.deps.Pools.ByPairContract(contract)
	if err != nil {
		h.deps.Logger.WithError(err).WithField("pair_contract", contract).Warn("processor: swap on unknown pool")
		return
	}

	baseDenom, quoteDenom, err := h.poolDenoms(p)
	if err != nil {
		h.deps.Logger.WithError(err).WithField("pool_id", p.ID).Warn("processor: resolving pool denoms")
		return
	}

	offerAsset, offerAmount := sw["offer_asset"], sw["offer_amount"]
	returnAmount := sw["return_amount"]
	direction := event.ClassifyDirection(offerAsset, quoteDenom)

	reserves, _ := event.ParseReservesKV(sw["reserves"])
	baseReserve, quoteReserve := matchReservesByDenom(reserves, baseDenom, quoteDenom)

	trade := &models.Trade{
		CreatedAt:        blockTime,
		TxHash:           tx.hash,
		PoolID:           p.ID,
		MsgIndex:         msgIndexOf(sw),
		Action:           models.TradeActionSwap,
		Direction:        models.TradeDirection(direction),
		OfferAmountBase:  nonEmptyPtr(offerAmount),
		ReturnAmountBase: nonEmptyPtr(returnAmount),
		ReserveBaseBase:  nonEmptyPtr(baseReserve),
		ReserveQuoteBase: nonEmptyPtr(quoteReserve),
		Height:           h.height,
		Signer:           tx.senderByIndex[msgIndexOf(sw)],
	}
	h.deps.Trades.Add(trade)

	if baseReserve != "" && quoteReserve != "" {
		h.deps.PoolStates.Add(&models.PoolState{
			PoolID:           p.ID,
			ReserveBaseBase:  baseReserve,
			ReserveQuoteBase: quoteReserve,
			UpdatedAt:        blockTime,
		})
	}

	if !p.IsNativeQuote {
		return
	}

	if dup, err := h.deps.Trades.Exists(blockTime, tx.hash, p.ID, msgIndexOf(sw)); err != nil {
		h.deps.Logger.WithError(err).WithField("pool_id", p.ID).Warn("processor: checking trade replay")
	} else if dup {
		// Already committed: skip the candle update too, since its
		// volume/trade_count merge is additive and would double-count
		// on replay (reprocessing a height after a crash before
		// checkpoint, or an explicit backfill).
		return
	}

	quoteLegRaw := offerAmount
	if offerAsset != quoteDenom {
		quoteLegRaw = returnAmount
	}

	h.upsertPriceAndCandle(ctx, p, baseDenom, quoteDenom, blockTime, quoteLegRaw, 1)
}

func (h *Height) processLiquidity(ctx context.Context, tx txEvents, attrs event.AttrMap, blockTime time.Time, action models.TradeAction) {
	contract := attrs["_contract_address"]
	p, err := h.deps.Pools.ByPairContract(contract)
	if err != nil {
		h.deps.Logger.WithError(err).WithField("pair_contract", contract).Warn("processor: liquidity event on unknown pool")
		return
	}

	baseDenom, quoteDenom, err := h.poolDenoms(p)
	if err != nil {
		h.deps.Logger.WithError(err).WithField("pool_id", p.ID).Warn("processor: resolving pool denoms")
		return
	}

	baseAmount, quoteAmount := matchReserveAssetAttrs(attrs, baseDenom, quoteDenom)

	direction := models.TradeDirectionProvide
	if action == models.TradeActionWithdraw {
		direction = models.TradeDirectionWithdraw
	}

	trade := &models.Trade{
		CreatedAt:        blockTime,
		TxHash:           tx.hash,
		PoolID:           p.ID,
		MsgIndex:         msgIndexOf(attrs),
		Action:           action,
		Direction:        direction,
		OfferAmountBase:  nonEmptyPtr(baseAmount),
		AskAmountBase:    nonEmptyPtr(quoteAmount),
		ReserveBaseBase:  nonEmptyPtr(baseAmount),
		ReserveQuoteBase: nonEmptyPtr(quoteAmount),
		Height:           h.height,
		Signer:           tx.senderByIndex[msgIndexOf(attrs)],
	}
	h.deps.Trades.Add(trade)

	if baseAmount != "" && quoteAmount != "" {
		h.deps.PoolStates.Add(&models.PoolState{
			PoolID:           p.ID,
			ReserveBaseBase:  baseAmount,
			ReserveQuoteBase: quoteAmount,
			UpdatedAt:        blockTime,
		})
	}

	if !p.IsNativeQuote {
		return
	}

	// Provide/withdraw upsert Price only; the zero-volume bootstrap
	// candle for a brand new pool is the Fast-Track Listener's job
	// (§4.E), triggered off this same height's pair_created notification.
	h.upsertPrice(ctx, p, baseDenom, quoteDenom, blockTime)
}

// upsertPrice resolves live reserves and writes Price, shared by the
// liquidity path (no candle) and upsertPriceAndCandle (swap path).
func (h *Height) upsertPrice(ctx context.Context, p *models.Pool, baseDenom, quoteDenom string, blockTime time.Time) (decimal.Decimal, bool) {
	baseExponent, err := h.deps.Tokens.ExponentByID(p.BaseTokenID)
	if err != nil {
		h.deps.Logger.WithError(err).WithField("pool_id", p.ID).Warn("processor: resolving base exponent")
		return decimal.Decimal{}, false
	}
	if baseExponent == 0 {
		// Unresolved exponent: skip price/candle, the trade row is
		// still written regardless.
		return decimal.Decimal{}, false
	}

	reserves, err := h.deps.Reserves.Fetch(ctx, p.PairContract, baseDenom, quoteDenom)
	if err != nil {
		h.deps.Logger.WithError(err).WithField("pool_id", p.ID).Warn("processor: fetching live reserves")
		return decimal.Decimal{}, false
	}

	priceNative, err := pool.PriceFromReserves(reserves.BaseRaw, reserves.QuoteRaw, baseExponent, models.DefaultExponent)
	if err != nil {
		h.deps.Logger.WithError(err).WithField("pool_id", p.ID).Warn("processor: computing price")
		return decimal.Decimal{}, false
	}

	if err := h.deps.Prices.UpsertPrice(p.BaseTokenID, p.ID, priceNative, p.IsNativeQuote, blockTime); err != nil {
		h.deps.Logger.WithError(err).WithField("pool_id", p.ID).Error("processor: upserting price")
	}
	return priceNative, true
}

// upsertPriceAndCandle additionally enqueues the swap candle point once
// price has been resolved.
func (h *Height) upsertPriceAndCandle(ctx context.Context, p *models.Pool, baseDenom, quoteDenom string, blockTime time.Time, quoteLegRaw string, tradeIncrement int64) {
	priceNative, ok := h.upsertPrice(ctx, p, baseDenom, quoteDenom, blockTime)
	if !ok {
		return
	}

	volume, err := decimal.NewFromString(quoteLegRaw)
	if err != nil {
		h.deps.Logger.WithError(err).WithField("pool_id", p.ID).Warn("processor: parsing quote leg amount")
		return
	}
	volume = volume.Div(decimal.New(1, int32(models.DefaultExponent)))

	h.deps.Candles.Add(batch.CandlePoint{
		PoolID:     p.ID,
		Minute:     blockTime.Truncate(time.Minute),
		Price:      priceNative,
		Volume:     volume,
		TradeCount: tradeIncrement,
	})
}

func (h *Height) poolDenoms(p *models.Pool) (base, quote string, err error) {
	base, err = h.deps.Tokens.DenomByID(p.BaseTokenID)
	if err != nil {
		return "", "", err
	}
	quote, err = h.deps.Tokens.DenomByID(p.QuoteTokenID)
	if err != nil {
		return "", "", err
	}
	return base, quote, nil
}

// runPhase3Metadata refreshes metadata for newly seen denoms under the
// low-priority concurrency cap.
func (h *Height) runPhase3Metadata(ctx context.Context, newDenoms map[string]struct{}) {
	if len(newDenoms) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.deps.MetaConcurrency)
	for denom := range newDenoms {
		denom := denom
		g.Go(func() error {
			if err := h.deps.Resolver.Refresh(gctx, denom); err != nil {
				h.deps.Logger.WithError(err).WithField("denom", denom).Warn("processor: metadata refresh failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func matchReservesByDenom(assets []event.Asset, baseDenom, quoteDenom string) (baseRaw, quoteRaw string) {
	for _, a := range assets {
		switch a.Denom {
		case baseDenom:
			baseRaw = a.AmountBase
		case quoteDenom:
			quoteRaw = a.AmountBase
		}
	}
	return baseRaw, quoteRaw
}

func matchReserveAssetAttrs(attrs event.AttrMap, baseDenom, quoteDenom string) (baseAmount, quoteAmount string) {
	pairs := [][2]string{
		{attrs["reserve_asset1_denom"], attrs["reserve_asset1_amount"]},
		{attrs["reserve_asset2_denom"], attrs["reserve_asset2_amount"]},
	}
	for _, pair := range pairs {
		switch pair[0] {
		case baseDenom:
			baseAmount = pair[1]
		case quoteDenom:
			quoteAmount = pair[1]
		}
	}
	return baseAmount, quoteAmount
}

// Package fx pulls the external USD/native exchange rate on a fixed
// cycle and upserts it into the minute-bucketed FXRate table. Grounded
// on the teacher's node API client's retry posture (429/5xx retryable,
// everything else fails the cycle), reusing the same cenkalti/backoff
// policy shape as package chain but against a single external host
// instead of a round-robin RPC/LCD set.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-pg/pg/v10"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/zigscan/amm-indexer/models"
)

const cmcQuoteURL = "https://pro-api.coinmarketcap.com/v2/cryptocurrency/quotes/latest"

// Fetcher polls a CoinMarketCap-shaped quote endpoint for the
// configured symbol/convert pair.
type Fetcher struct {
	db      *pg.DB
	http    *fasthttp.Client
	logger  *logrus.Entry
	apiKey  string
	symbol  string
	convert string
	baseURL string
}

// NewFetcher constructs a Fetcher. symbol/convert are CMC_SYMBOL and
// CMC_CONVERT (e.g. "ZIG"/"USD").
func NewFetcher(db *pg.DB, apiKey, symbol, convert string, logger *logrus.Entry) *Fetcher {
	return &Fetcher{
		db:      db,
		http:    &fasthttp.Client{Name: "amm-indexer-fx"},
		logger:  logger,
		apiKey:  apiKey,
		symbol:  symbol,
		convert: convert,
		baseURL: cmcQuoteURL,
	}
}

// WithBaseURL overrides the quote endpoint, used by tests to point at
// an httptest server instead of the live CoinMarketCap API.
func (f *Fetcher) WithBaseURL(url string) *Fetcher {
	f.baseURL = url
	return f
}

// Run polls every interval (FX_SEC, default 36s) until ctx is
// cancelled.
func (f *Fetcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.FetchOnce(ctx); err != nil {
				f.logger.WithError(err).Warn("fx: fetch cycle failed")
			}
		}
	}
}

type cmcQuoteResponse struct {
	Data map[string][]struct {
		Quote map[string]struct {
			Price float64 `json:"price"`
		} `json:"quote"`
	} `json:"data"`
}

// extractPrice pulls quote[convert].price for symbol out of a
// CoinMarketCap-shaped quotes/latest response body.
func extractPrice(body []byte, symbol, convert string) (float64, error) {
	var resp cmcQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("fx: decoding quote response: %w", err)
	}
	quotes, ok := resp.Data[symbol]
	if !ok || len(quotes) == 0 {
		return 0, fmt.Errorf("fx: symbol %s missing from response", symbol)
	}
	q, ok := quotes[0].Quote[convert]
	if !ok {
		return 0, fmt.Errorf("fx: convert currency %s missing from response", convert)
	}
	return q.Price, nil
}

// FetchOnce performs a single fetch-and-upsert cycle: 429/5xx retry
// with exponential backoff (1.5s, capped at 15s, up to 4 attempts);
// any other status fails the cycle without retry.
func (f *Fetcher) FetchOnce(ctx context.Context) error {
	policy := backoff.WithContext(newFXBackOff(), ctx)

	var price float64
	operation := func() error {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		url := fmt.Sprintf("%s?symbol=%s&convert=%s", f.baseURL, f.symbol, f.convert)
		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set("X-CMC_PRO_API_KEY", f.apiKey)
		req.Header.Set("Accept", "application/json")

		if err := f.http.Do(req, resp); err != nil {
			return err
		}

		status := resp.StatusCode()
		switch {
		case status == fasthttp.StatusOK:
			p, err := extractPrice(resp.Body(), f.symbol, f.convert)
			if err != nil {
				return backoff.Permanent(err)
			}
			price = p
			return nil
		case status == fasthttp.StatusTooManyRequests || status >= 500:
			return fmt.Errorf("fx: retryable status %d", status)
		default:
			return backoff.Permanent(fmt.Errorf("fx: http %d", status))
		}
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return err
	}

	return f.upsert(price)
}

func (f *Fetcher) upsert(price float64) error {
	rate := &models.FXRate{
		Ts:           time.Now().UTC().Truncate(time.Minute),
		NativePerUSD: price,
	}
	_, err := f.db.Model(rate).
		OnConflict("(ts) DO UPDATE").
		Set("native_per_usd = EXCLUDED.native_per_usd").
		Insert()
	return err
}

// newFXBackOff builds the 1.5s->15s-cap, 4-attempt policy from spec §4.I.
func newFXBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1500 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, 3)
}

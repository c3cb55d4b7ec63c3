// Package chain talks to a node's RPC and LCD HTTP APIs: polling
// /status, /block, /block_results, and querying LCD endpoints for denom
// metadata, ownership pages, IBC traces, and CosmWasm smart queries.
// Every outbound call fails over across a configured endpoint list and
// retries 429/5xx with jittered exponential backoff; 501 and other 4xx
// fail fast (501 as a permanent "not implemented" error), matching the teacher's node API client's "don't retry what
// won't succeed on retry" posture.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	"github.com/valyala/fasthttp"
)

const maxAttempts = 6

// permanentHTTPError wraps a non-retryable HTTP status so backoff.Retry
// stops immediately instead of exhausting its attempt budget.
type permanentHTTPError struct {
	status int
	body   string
}

func (e *permanentHTTPError) Error() string {
	return fmt.Sprintf("chain: http %d: %s", e.status, e.body)
}

// IsNotImplemented reports whether err is a permanent HTTP 501 from an
// LCD endpoint, the holders sweeper's "denom ownership not supported"
// signal (spec §4.G).
func IsNotImplemented(err error) bool {
	var httpErr *permanentHTTPError
	return errors.As(err, &httpErr) && httpErr.status == fasthttp.StatusNotImplemented
}

// endpointSet is a round-robin list of base URLs used for failover.
type endpointSet struct {
	urls []string
	next uint64
}

func newEndpointSet(urls []string) *endpointSet {
	return &endpointSet{urls: urls}
}

func (s *endpointSet) pick() (string, error) {
	if len(s.urls) == 0 {
		return "", fmt.Errorf("chain: no endpoints configured")
	}
	i := atomic.AddUint64(&s.next, 1) - 1
	return s.urls[i%uint64(len(s.urls))], nil
}

// Client is the indexer's sole entrypoint for node communication.
type Client struct {
	rpc  *endpointSet
	lcd  *endpointSet
	http *fasthttp.Client
}

// NewClient constructs a Client. rpcPrimary/rpcBackup and
// lcdPrimary/lcdBackup are concatenated into their respective
// round-robin pools in primary-first order.
func NewClient(rpcPrimary, rpcBackup, lcdPrimary, lcdBackup []string) *Client {
	return &Client{
		rpc:  newEndpointSet(append(append([]string{}, rpcPrimary...), rpcBackup...)),
		lcd:  newEndpointSet(append(append([]string{}, lcdPrimary...), lcdBackup...)),
		http: &fasthttp.Client{Name: "amm-indexer"},
	}
}

// doJSON performs a GET against one endpoint from set per attempt,
// decoding a successful response into out. Each retry round-robins to
// the next endpoint in the set, so backoff and failover happen
// together.
func (c *Client) doJSON(ctx context.Context, set *endpointSet, path string, out interface{}) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(newJitteredBackOff(), maxAttempts), ctx)

	operation := func() error {
		base, err := set.pick()
		if err != nil {
			return backoff.Permanent(err)
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(base + path)
		req.Header.SetMethod(fasthttp.MethodGet)

		if err := c.http.Do(req, resp); err != nil {
			return err
		}

		status := resp.StatusCode()
		switch {
		case status == fasthttp.StatusOK:
			return json.Unmarshal(resp.Body(), out)
		case status == fasthttp.StatusNotImplemented:
			return backoff.Permanent(&permanentHTTPError{status: status, body: string(resp.Body())})
		case status == fasthttp.StatusTooManyRequests || status >= 500:
			return fmt.Errorf("chain: retryable status %d from %s", status, base)
		default:
			return backoff.Permanent(&permanentHTTPError{status: status, body: string(resp.Body())})
		}
	}

	return backoff.Retry(operation, policy)
}

// Package event turns a decoded block_results payload into typed event
// views: grouping by type, decoding base64 attributes, and extracting
// the swap/liquidity/pair fields the block processor consumes. Style
// follows the teacher's events.Service — small pure helpers plus a
// single dispatch point — generalized because the underlying event
// shape (CosmWasm wasm-log attributes) differs entirely from the
// teacher's gRPC event types.
package event

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/zigscan/amm-indexer/chain"
)

// AttrMap is one event's decoded attribute key→value pairs.
type AttrMap map[string]string

// ByType groups an event list's attribute maps by event type.
func ByType(events []chain.Event, eventType string) []AttrMap {
	var out []AttrMap
	for _, e := range events {
		if e.Type != eventType {
			continue
		}
		out = append(out, decodeAttrs(e.Attributes))
	}
	return out
}

// WasmByAction filters the "wasm" event views down to those whose
// action attribute equals action.
func WasmByAction(wasms []AttrMap, action string) []AttrMap {
	var out []AttrMap
	for _, w := range wasms {
		if w["action"] == action {
			out = append(out, w)
		}
	}
	return out
}

// MsgSenderByIndex maps a "message" event's msg_index attribute to its
// sender, for events that don't carry their own sender.
func MsgSenderByIndex(messages []AttrMap) map[int]string {
	out := make(map[int]string)
	for _, m := range messages {
		idx, err := strconv.Atoi(m["msg_index"])
		if err != nil {
			continue
		}
		if sender, ok := m["sender"]; ok {
			out[idx] = sender
		}
	}
	return out
}

// decodeAttrs base64-decodes each key/value pair only when the decode
// round-trips to printable ASCII; attributes that are already plain
// text (not base64-wrapped, as on some RPC builds) pass through as-is.
func decodeAttrs(attrs []struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}) AttrMap {
	out := make(AttrMap, len(attrs))
	for _, a := range attrs {
		out[decodeSafe(a.Key)] = decodeSafe(a.Value)
	}
	return out
}

func decodeSafe(s string) string {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	if !isPrintableASCII(decoded) {
		return s
	}
	// Round-trip check: re-encoding must reproduce the original string.
	if base64.StdEncoding.EncodeToString(decoded) != s {
		return s
	}
	return string(decoded)
}

func isPrintableASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// Asset is a {denom, amount_base} pair parsed out of a reserves or
// assets attribute value.
type Asset struct {
	Denom      string
	AmountBase string
}

// ParsePair splits a "base-quote" pair-identifier string into (base,
// quote), flipping the order so the native denom always ends up as
// quote when either side names it.
func ParsePair(pairString string, nativeDenom string) (base, quote string, err error) {
	parts := strings.SplitN(pairString, "-", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("event: malformed pair string %q", pairString)
	}
	a, b := parts[0], parts[1]
	if a == nativeDenom {
		return b, a, nil
	}
	return a, b, nil
}

// ParseReservesKV parses a "denom:amount,denom:amount" style reserves
// string (as emitted in the swap event's "reserves" attribute) into
// ordered Assets.
func ParseReservesKV(s string) ([]Asset, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]Asset, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, ":", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			return nil, fmt.Errorf("event: malformed reserves entry %q", p)
		}
		out = append(out, Asset{Denom: kv[0], AmountBase: kv[1]})
	}
	return out, nil
}

// ParseAssetsList parses a comma-separated "amountdenom" list (the
// format of a liquidity event's "assets" attribute) into Assets.
func ParseAssetsList(s string) ([]Asset, error) {
	return parseAmountDenomList(s)
}

// parseAmountDenomList splits a comma-separated list of
// "<amount><denom>" tokens, e.g. "1000000uzig,500factory/...".
func parseAmountDenomList(s string) ([]Asset, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]Asset, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		i := 0
		for i < len(p) && p[i] >= '0' && p[i] <= '9' {
			i++
		}
		if i == 0 {
			return nil, fmt.Errorf("event: no numeric amount in %q", p)
		}
		out = append(out, Asset{AmountBase: p[:i], Denom: p[i:]})
	}
	return out, nil
}

// ClassifyDirection returns "buy" when the offered denom is the pool's
// quote denom, else "sell".
func ClassifyDirection(offerDenom, quoteDenom string) string {
	if offerDenom == quoteDenom {
		return "buy"
	}
	return "sell"
}

// TxHash computes the uppercase hex SHA-256 of a base64-encoded raw tx,
// matching the Tendermint/CometBFT convention for deriving tx hashes
// from block.data.txs entries.
func TxHash(rawBase64Tx string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(rawBase64Tx)
	if err != nil {
		return "", fmt.Errorf("event: decoding raw tx: %w", err)
	}
	sum := sha256.Sum256(raw)
	return strings.ToUpper(fmt.Sprintf("%x", sum)), nil
}

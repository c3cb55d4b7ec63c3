package event

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zigscan/amm-indexer/chain"
)

func attr(key, value string) struct {
	Key   string `json:"key"`
	Value string `json:"value"`
} {
	return struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}{Key: base64.StdEncoding.EncodeToString([]byte(key)), Value: base64.StdEncoding.EncodeToString([]byte(value))}
}

func TestByType_DecodesBase64Attributes(t *testing.T) {
	events := []chain.Event{
		{
			Type: "wasm",
			Attributes: []struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}{attr("action", "swap"), attr("pair", "uzig-factory/x/ALPHA")},
		},
	}

	got := ByType(events, "wasm")
	assert.Len(t, got, 1)
	assert.Equal(t, "swap", got[0]["action"])
	assert.Equal(t, "uzig-factory/x/ALPHA", got[0]["pair"])
}

func TestByType_PassesThroughNonBase64Plainttext(t *testing.T) {
	events := []chain.Event{
		{
			Type: "wasm",
			Attributes: []struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}{{Key: "action", Value: "swap"}},
		},
	}

	got := ByType(events, "wasm")
	assert.Equal(t, "swap", got[0]["action"])
}

func TestWasmByAction_Filters(t *testing.T) {
	wasms := []AttrMap{
		{"action": "swap"},
		{"action": "provide_liquidity"},
	}
	got := WasmByAction(wasms, "swap")
	assert.Len(t, got, 1)
	assert.Equal(t, "swap", got[0]["action"])
}

func TestMsgSenderByIndex(t *testing.T) {
	messages := []AttrMap{
		{"msg_index": "0", "sender": "zig1aaa"},
		{"msg_index": "1", "sender": "zig1bbb"},
		{"msg_index": "not-a-number"},
	}
	got := MsgSenderByIndex(messages)
	assert.Equal(t, map[int]string{0: "zig1aaa", 1: "zig1bbb"}, got)
}

func TestParsePair_NativeSideBecomesQuote(t *testing.T) {
	base, quote, err := ParsePair("factory/x/ALPHA-uzig", "uzig")
	assert.NoError(t, err)
	assert.Equal(t, "factory/x/ALPHA", base)
	assert.Equal(t, "uzig", quote)

	base, quote, err = ParsePair("uzig-factory/x/ALPHA", "uzig")
	assert.NoError(t, err)
	assert.Equal(t, "factory/x/ALPHA", base)
	assert.Equal(t, "uzig", quote)
}

func TestParsePair_MalformedString(t *testing.T) {
	_, _, err := ParsePair("no-delimiter-here-either", "uzig")
	assert.NoError(t, err) // has a dash, splits into two halves
	_, _, err = ParsePair("nodashatall", "uzig")
	assert.Error(t, err)
}

func TestParseAssetsList_ParsesAmountDenomPairs(t *testing.T) {
	got, err := ParseAssetsList("1000000uzig, 500factory/zig1abc/ALPHA")
	assert.NoError(t, err)
	assert.Equal(t, []Asset{
		{AmountBase: "1000000", Denom: "uzig"},
		{AmountBase: "500", Denom: "factory/zig1abc/ALPHA"},
	}, got)
}

func TestParseAssetsList_Empty(t *testing.T) {
	got, err := ParseAssetsList("")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseAssetsList_RejectsMissingAmount(t *testing.T) {
	_, err := ParseAssetsList("uzig")
	assert.Error(t, err)
}

func TestParseReservesKV_ParsesDenomAmountPairs(t *testing.T) {
	got, err := ParseReservesKV("TKN:760000000,uzig:2500000")
	assert.NoError(t, err)
	assert.Equal(t, []Asset{
		{Denom: "TKN", AmountBase: "760000000"},
		{Denom: "uzig", AmountBase: "2500000"},
	}, got)
}

func TestParseReservesKV_Empty(t *testing.T) {
	got, err := ParseReservesKV("")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseReservesKV_RejectsMalformedEntry(t *testing.T) {
	_, err := ParseReservesKV("TKN-760000000")
	assert.Error(t, err)
}

func TestClassifyDirection(t *testing.T) {
	assert.Equal(t, "buy", ClassifyDirection("uzig", "uzig"))
	assert.Equal(t, "sell", ClassifyDirection("factory/x/ALPHA", "uzig"))
}

func TestTxHash_UppercaseHexOfSHA256(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte("hello"))
	got, err := TxHash(raw)
	assert.NoError(t, err)
	assert.Equal(t, "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824", got)
}

func TestTxHash_RejectsInvalidBase64(t *testing.T) {
	_, err := TxHash("not-valid-base64!!")
	assert.Error(t, err)
}

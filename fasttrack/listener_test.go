package fasttrack

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zigscan/amm-indexer/models"
)

func TestPairCreated_RoundTripsThroughJSON(t *testing.T) {
	pc := models.PairCreated{
		PoolID:        7,
		PairContract:  "zig1pair",
		BaseDenom:     "factory/zig1abc/ALPHA",
		QuoteDenom:    "uzig",
		BaseTokenID:   2,
		QuoteTokenID:  1,
		IsNativeQuote: true,
	}

	raw, err := json.Marshal(pc)
	require.NoError(t, err)

	var decoded models.PairCreated
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, pc, decoded)
}

func TestPairCreated_MalformedPayloadFailsToDecode(t *testing.T) {
	var pc models.PairCreated
	err := json.Unmarshal([]byte("not json"), &pc)
	assert.Error(t, err)
}

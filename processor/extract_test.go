package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zigscan/amm-indexer/event"
)

func TestResolvePairContract_PrefersRegisterByMsgIndex(t *testing.T) {
	tx := txEvents{
		registers: []event.AttrMap{
			{"pair_contract_addr": "zig1pair0", "msg_index": "0"},
			{"pair_contract_addr": "zig1pair1", "msg_index": "1"},
		},
		instantiates: []event.AttrMap{
			{"_contract_address": "zig1instlast"},
		},
	}
	assert.Equal(t, "zig1pair1", resolvePairContract(tx, 1))
}

func TestResolvePairContract_FallsBackToLastInstantiate(t *testing.T) {
	tx := txEvents{
		instantiates: []event.AttrMap{
			{"_contract_address": "zig1first"},
			{"_contract_address": "zig1last"},
		},
	}
	assert.Equal(t, "zig1last", resolvePairContract(tx, 0))
}

func TestResolvePairContract_NoCandidatesReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", resolvePairContract(txEvents{}, 0))
}

func TestMsgIndexOf_ParsesOrDefaultsToZero(t *testing.T) {
	assert.Equal(t, 3, msgIndexOf(event.AttrMap{"msg_index": "3"}))
	assert.Equal(t, 0, msgIndexOf(event.AttrMap{}))
}

package processor

import (
	"strconv"

	"github.com/zigscan/amm-indexer/chain"
	"github.com/zigscan/amm-indexer/event"
)

// txEvents holds one tx's categorized event views, scanned once per
// spec §4.D step 2. CosmWasm contracts surface their custom actions
// under the shared "wasm" event type with an "action" attribute;
// "instantiate" and "message" are the SDK's own built-in event types.
type txEvents struct {
	hash          string
	createPairs   []event.AttrMap
	registers     []event.AttrMap
	swaps         []event.AttrMap
	provides      []event.AttrMap
	withdraws     []event.AttrMap
	instantiates  []event.AttrMap
	senderByIndex map[int]string
}

// extractTxEvents classifies a single tx's events per spec §4.D step 2.
func extractTxEvents(rawTx string, events []chain.Event) (txEvents, error) {
	hash, err := event.TxHash(rawTx)
	if err != nil {
		return txEvents{}, err
	}

	wasms := event.ByType(events, "wasm")
	messages := event.ByType(events, "message")

	return txEvents{
		hash:          hash,
		createPairs:   event.WasmByAction(wasms, "create_pair"),
		registers:     event.WasmByAction(wasms, "register"),
		swaps:         event.WasmByAction(wasms, "swap"),
		provides:      event.WasmByAction(wasms, "provide_liquidity"),
		withdraws:     event.WasmByAction(wasms, "withdraw_liquidity"),
		instantiates:  event.ByType(events, "instantiate"),
		senderByIndex: event.MsgSenderByIndex(messages),
	}, nil
}

// resolvePairContract implements step 3's "pick pool address from
// register.pair_contract_addr if present else the last
// instantiate._contract_address" rule for the create_pair event at
// msgIndex.
func resolvePairContract(tx txEvents, msgIndex int) string {
	for _, r := range tx.registers {
		if r["pair_contract_addr"] == "" {
			continue
		}
		if idx, err := strconv.Atoi(r["msg_index"]); err == nil && idx != msgIndex {
			continue
		}
		return r["pair_contract_addr"]
	}
	if n := len(tx.instantiates); n > 0 {
		return tx.instantiates[n-1]["_contract_address"]
	}
	return ""
}

func msgIndexOf(attrs event.AttrMap) int {
	idx, _ := strconv.Atoi(attrs["msg_index"])
	return idx
}

package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// StatusResponse is the decoded /status response; only the fields the
// driver actually reads are typed, everything else rides along as
// ignored JSON.
type StatusResponse struct {
	Result struct {
		SyncInfo struct {
			LatestBlockHeight string `json:"latest_block_height"`
		} `json:"sync_info"`
	} `json:"result"`
}

// LatestHeight returns the numeric height parsed from the response.
func (s *StatusResponse) LatestHeight() (uint64, error) {
	return strconv.ParseUint(s.Result.SyncInfo.LatestBlockHeight, 10, 64)
}

// Status polls /status and returns the latest known height.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	out := &StatusResponse{}
	if err := c.doJSON(ctx, c.rpc, "/status", out); err != nil {
		return nil, err
	}
	return out, nil
}

// Event mirrors a single tx_results[].events[] entry; attribute values
// arrive base64-encoded per the Tendermint/CometBFT RPC convention.
type Event struct {
	Type       string `json:"type"`
	Attributes []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"attributes"`
}

// BlockResponse is the decoded /block response.
type BlockResponse struct {
	Result struct {
		Block struct {
			Header struct {
				Time string `json:"time"`
			} `json:"header"`
			Data struct {
				Txs []string `json:"txs"`
			} `json:"data"`
		} `json:"block"`
	} `json:"result"`
}

// Block fetches the block at height h.
func (c *Client) Block(ctx context.Context, h uint64) (*BlockResponse, error) {
	out := &BlockResponse{}
	if err := c.doJSON(ctx, c.rpc, fmt.Sprintf("/block?height=%d", h), out); err != nil {
		return nil, err
	}
	return out, nil
}

// BlockResultsResponse is the decoded /block_results response.
type BlockResultsResponse struct {
	Result struct {
		TxsResults []struct {
			Events []Event `json:"events"`
		} `json:"txs_results"`
	} `json:"result"`
}

// BlockResults fetches the per-tx event results for height h.
func (c *Client) BlockResults(ctx context.Context, h uint64) (*BlockResultsResponse, error) {
	out := &BlockResultsResponse{}
	if err := c.doJSON(ctx, c.rpc, fmt.Sprintf("/block_results?height=%d", h), out); err != nil {
		return nil, err
	}
	return out, nil
}

// DenomMetadataResponse is the decoded bank module denom metadata query.
type DenomMetadataResponse struct {
	Metadata struct {
		Name        string `json:"name"`
		Symbol      string `json:"symbol"`
		Description string `json:"description"`
		DenomUnits  []struct {
			Denom    string `json:"denom"`
			Exponent int    `json:"exponent"`
		} `json:"denom_units"`
	} `json:"metadata"`
}

// DenomMetadata fetches bank-module metadata for denom.
func (c *Client) DenomMetadata(ctx context.Context, denom string) (*DenomMetadataResponse, error) {
	out := &DenomMetadataResponse{}
	path := "/cosmos/bank/v1beta1/denoms_metadata/" + denom
	if err := c.doJSON(ctx, c.lcd, path, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FactoryDenomResponse is the decoded chain-specific token-factory
// lookup used for max/total supply and minting-cap state.
type FactoryDenomResponse struct {
	Creator             string `json:"creator"`
	MaxSupply           string `json:"max_supply"`
	TotalSupply         string `json:"total_supply"`
	TotalMinted         string `json:"total_minted"`
	CanChangeMintingCap bool   `json:"can_change_minting_cap"`
	MintingCap          string `json:"minting_cap"`
}

// FactoryDenom queries the chain-specific factory-denom endpoint.
func (c *Client) FactoryDenom(ctx context.Context, denom string) (*FactoryDenomResponse, error) {
	out := &FactoryDenomResponse{}
	path := "/zigchain/factory/denom/" + denom
	if err := c.doJSON(ctx, c.lcd, path, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DenomOwnersResponse is one page of the bank-module ownership query.
type DenomOwnersResponse struct {
	DenomOwners []struct {
		Address string `json:"address"`
		Balance struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"balance"`
	} `json:"denom_owners"`
	Pagination struct {
		NextKey string `json:"next_key"`
	} `json:"pagination"`
}

// DenomOwners fetches one page of denom ownership, continuing from
// pageKey when non-empty.
func (c *Client) DenomOwners(ctx context.Context, denom, pageKey string) (*DenomOwnersResponse, error) {
	out := &DenomOwnersResponse{}
	path := "/cosmos/bank/v1beta1/denom_owners/" + denom
	if pageKey != "" {
		path += "?pagination.key=" + pageKey
	}
	if err := c.doJSON(ctx, c.lcd, path, out); err != nil {
		return nil, err
	}
	return out, nil
}

// IBCDenomTraceResponse is the decoded IBC transfer module denom trace.
type IBCDenomTraceResponse struct {
	DenomTrace struct {
		Path      string `json:"path"`
		BaseDenom string `json:"base_denom"`
	} `json:"denom_trace"`
}

// IBCDenomTrace resolves an ibc/HASH denom to its source chain/base denom.
func (c *Client) IBCDenomTrace(ctx context.Context, hash string) (*IBCDenomTraceResponse, error) {
	out := &IBCDenomTraceResponse{}
	path := "/ibc/apps/transfer/v1/denoms/ibc/" + hash
	if err := c.doJSON(ctx, c.lcd, path, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SmartQuery runs a CosmWasm smart contract query and returns the raw
// decoded JSON result; interpretation is left to the caller, matching
// spec §4.A's "interpretation is the caller's responsibility" contract.
func (c *Client) SmartQuery(ctx context.Context, contract string, msg interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("chain: marshaling smart query msg: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(payload)
	path := fmt.Sprintf("/cosmwasm/wasm/v1/contract/%s/smart/%s", contract, encoded)

	var out struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.doJSON(ctx, c.lcd, path, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

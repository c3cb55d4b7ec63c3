package token

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/zigscan/amm-indexer/chain"
	"github.com/zigscan/amm-indexer/models"
)

const ibcPrefix = "ibc/"

// Resolver implements refresh(denom) (§4.K): merging on-chain metadata,
// IBC denom traces, factory supply, and an off-chain asset-registry
// lookup into the canonical Token row.
type Resolver struct {
	chain    *chain.Client
	repo     *Repository
	http     *fasthttp.Client
	registry *AssetRegistry
}

// NewResolver constructs a Resolver. registry may be nil, which is the
// "chain registry disabled" (USE_CHAIN_REGISTRY=false) case — Lookup on
// a nil *AssetRegistry always misses, so Refresh behaves exactly as it
// did before the registry existed.
func NewResolver(c *chain.Client, repo *Repository, registry *AssetRegistry) *Resolver {
	return &Resolver{chain: c, repo: repo, http: &fasthttp.Client{Name: "amm-indexer-metadata"}, registry: registry}
}

// Refresh resolves and persists metadata for denom.
func (r *Resolver) Refresh(ctx context.Context, denom string) error {
	lookupDenom := denom
	kind := classifyDenom(denom)

	if kind == models.TokenKindIBC {
		hash := strings.TrimPrefix(denom, ibcPrefix)
		trace, err := r.chain.IBCDenomTrace(ctx, hash)
		if err != nil {
			return fmt.Errorf("token: resolving ibc trace for %s: %w", denom, err)
		}
		lookupDenom = trace.DenomTrace.BaseDenom
	}

	existing, err := r.repo.ByDenom(denom)
	if err != nil {
		existing = &models.Token{Denom: denom, Kind: kind, Exponent: models.DefaultExponent}
	}

	exponent, symbol, displayUnit := resolveExponent(lookupDenom, kind)

	meta, metaErr := r.chain.DenomMetadata(ctx, lookupDenom)
	patch := &models.Token{}
	if metaErr == nil && meta.Metadata.Symbol != "" {
		sym := meta.Metadata.Symbol
		patch.Symbol = &sym
		if meta.Metadata.Name != "" {
			name := meta.Metadata.Name
			patch.Name = &name
		}
		if meta.Metadata.Description != "" {
			desc := meta.Metadata.Description
			patch.Description = &desc
		}
		for _, unit := range meta.Metadata.DenomUnits {
			if unit.Denom == meta.Metadata.Symbol || unit.Denom == meta.Metadata.Name {
				exponent = unit.Exponent
			}
		}
	} else if symbol != "" {
		patch.Symbol = &symbol
		patch.DisplayUnit = &displayUnit
	}

	if kind == models.TokenKindFactory {
		if fd, err := r.chain.FactoryDenom(ctx, denom); err == nil {
			patch.MaxSupplyBase = nonEmpty(fd.MaxSupply)
			patch.TotalSupplyBase = nonEmpty(fd.TotalSupply)
		}
	}

	if asset, ok := r.registry.Lookup(lookupDenom, denom, symbol, displayUnit); ok {
		// Registry wins on conflict for curated fields; LCD metadata
		// otherwise. Applied as an overlay on the LCD-derived patch
		// before the never-clobber merge into existing.
		if asset.Name != "" {
			patch.Name = &asset.Name
		}
		if asset.Symbol != "" {
			patch.Symbol = &asset.Symbol
		}
		if asset.DisplayUnit != "" {
			patch.DisplayUnit = &asset.DisplayUnit
		}
		if asset.Exponent > 0 {
			exponent = asset.Exponent
		}
		if asset.Image != "" {
			patch.Image = &asset.Image
		}
		if asset.Website != "" {
			patch.Website = &asset.Website
		}
		if asset.Twitter != "" {
			patch.Twitter = &asset.Twitter
		}
		if asset.Telegram != "" {
			patch.Telegram = &asset.Telegram
		}
		if asset.Description != "" {
			patch.Description = &asset.Description
		}
	}

	MergeNonNull(existing, patch)
	SetResolved(existing, kind, exponent)

	return r.repo.Save(existing)
}

// resolveExponent determines a fallback exponent/symbol when denom
// metadata is absent or has no matching denom_units entry. IBC denoms
// default to exponent 6. The native denom is always exponent 6 by
// definition. Every other `u<core>` pattern (a factory or CW20 denom
// merely following the Cosmos SDK's micro-denomination naming
// convention) is left at exponent 0 — unresolved — since nothing
// guarantees such a denom is actually 6-decimal; only its core
// substring is usable as a readable symbol/display unit.
func resolveExponent(denom string, kind models.TokenKind) (exponent int, symbol, displayUnit string) {
	if kind == models.TokenKindIBC {
		return models.DefaultExponent, "", ""
	}
	if denom == models.NativeDenom {
		return models.DefaultExponent, "", ""
	}
	if strings.HasPrefix(denom, "u") && len(denom) > 1 {
		core := denom[1:]
		return 0, core, core
	}
	return 0, "", ""
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RegistryMetadata is the shape of an off-chain asset registry entry
// (icon/socials/description) fetched by URI when denom metadata
// advertises one.
type RegistryMetadata struct {
	Icon        string `json:"icon"`
	Image       string `json:"image"`
	Logo        string `json:"logo"`
	Website     string `json:"website"`
	Twitter     string `json:"twitter"`
	Telegram    string `json:"telegram"`
	Description string `json:"description"`
}

// FetchURIMetadata fetches a metadata URI and extracts image/social
// fields, distinguishing an image response (content-type image/*) from
// a JSON registry document.
func (r *Resolver) FetchURIMetadata(uri string) (image string, reg *RegistryMetadata, err error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := r.http.Do(req, resp); err != nil {
		return "", nil, fmt.Errorf("token: fetching metadata uri %s: %w", uri, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", nil, fmt.Errorf("token: metadata uri %s returned %d", uri, resp.StatusCode())
	}

	contentType := string(resp.Header.ContentType())
	if strings.HasPrefix(contentType, "image/") {
		return uri, nil, nil
	}

	var out RegistryMetadata
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", nil, fmt.Errorf("token: decoding metadata uri %s: %w", uri, err)
	}
	return "", &out, nil
}

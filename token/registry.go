package token

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// chainRegistryAssetListURL is the default source for the static asset
// registry: a cosmos/chain-registry-shaped assetlist document.
const chainRegistryAssetListURL = "https://raw.githubusercontent.com/cosmos/chain-registry/master/zigchain/assetlist.json"

// RegistryAsset is one curated entry from the static asset registry
// (spec §4.K step 4): name/symbol/display/exponent/image/socials/
// description, keyed by any of its base denom, display unit, symbol,
// or denom-unit aliases.
type RegistryAsset struct {
	Name        string
	Symbol      string
	DisplayUnit string
	Exponent    int
	Image       string
	Website     string
	Twitter     string
	Telegram    string
	Description string
}

// AssetRegistry is the process-wide static asset table described in
// spec §9: "the registry singleton, loaded once, guarded." Run performs
// the first load (sync.Once) and then reloads it on a fixed interval so
// curated metadata added upstream eventually reaches already-resolved
// tokens. Lookup never triggers a load; before Run's first load
// completes, every Lookup misses.
type AssetRegistry struct {
	http      *fasthttp.Client
	url       string
	batchSize int
	logger    *logrus.Entry

	once  sync.Once
	mu    sync.RWMutex
	byKey map[string]*RegistryAsset
}

// NewAssetRegistry constructs a disabled-until-loaded registry.
// batchSize governs how many assets are folded into the new lookup map
// per chunk during a (re)load, with ctx checked between chunks; the
// finished map replaces the old one in a single swap.
func NewAssetRegistry(batchSize int, logger *logrus.Entry) *AssetRegistry {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &AssetRegistry{
		http:      &fasthttp.Client{Name: "amm-indexer-registry"},
		url:       chainRegistryAssetListURL,
		batchSize: batchSize,
		logger:    logger,
		byKey:     make(map[string]*RegistryAsset),
	}
}

// Run loads the registry immediately, then reloads it every interval
// (REGISTRY_POLL_SEC) until ctx is cancelled.
func (a *AssetRegistry) Run(ctx context.Context, interval time.Duration) {
	a.ensureLoaded(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.reload(ctx); err != nil {
				a.logger.WithError(err).Warn("token: reloading asset registry")
			}
		}
	}
}

func (a *AssetRegistry) ensureLoaded(ctx context.Context) {
	a.once.Do(func() {
		if err := a.reload(ctx); err != nil {
			a.logger.WithError(err).Warn("token: initial asset registry load failed")
		}
	})
}

type assetListDoc struct {
	Assets []struct {
		Base        string `json:"base"`
		Name        string `json:"name"`
		Symbol      string `json:"symbol"`
		Description string `json:"description"`
		DenomUnits  []struct {
			Denom    string   `json:"denom"`
			Exponent int      `json:"exponent"`
			Aliases  []string `json:"aliases"`
		} `json:"denom_units"`
		LogoURIs struct {
			PNG string `json:"png"`
			SVG string `json:"svg"`
		} `json:"logo_URIs"`
		Socials struct {
			Website string `json:"website"`
			Twitter string `json:"twitter"`
			Telegram string `json:"telegram"`
		} `json:"socials"`
	} `json:"assets"`
}

// reload fetches the asset list and rebuilds the lookup map in
// batchSize-sized chunks, checking ctx between chunks, then swaps the
// map in under a single lock.
func (a *AssetRegistry) reload(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(a.url)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := a.http.DoDeadline(req, resp, time.Now().Add(10*time.Second)); err != nil {
		return fmt.Errorf("token: fetching asset registry: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("token: asset registry returned %d", resp.StatusCode())
	}

	var doc assetListDoc
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return fmt.Errorf("token: decoding asset registry: %w", err)
	}

	fresh := make(map[string]*RegistryAsset, len(doc.Assets))
	for start := 0; start < len(doc.Assets); start += a.batchSize {
		end := start + a.batchSize
		if end > len(doc.Assets) {
			end = len(doc.Assets)
		}
		for _, raw := range doc.Assets[start:end] {
			entry := &RegistryAsset{
				Name:        raw.Name,
				Symbol:      raw.Symbol,
				Description: raw.Description,
				Website:     raw.Socials.Website,
				Twitter:     raw.Socials.Twitter,
				Telegram:    raw.Socials.Telegram,
			}
			if raw.LogoURIs.PNG != "" {
				entry.Image = raw.LogoURIs.PNG
			} else {
				entry.Image = raw.LogoURIs.SVG
			}

			keys := map[string]struct{}{
				strings.ToLower(raw.Base):   {},
				strings.ToLower(raw.Symbol): {},
			}
			for _, unit := range raw.DenomUnits {
				keys[strings.ToLower(unit.Denom)] = struct{}{}
				if unit.Exponent > entry.Exponent {
					entry.Exponent = unit.Exponent
					entry.DisplayUnit = unit.Denom
				}
				for _, alias := range unit.Aliases {
					keys[strings.ToLower(alias)] = struct{}{}
				}
			}
			for k := range keys {
				if k != "" {
					fresh[k] = entry
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	a.mu.Lock()
	a.byKey = fresh
	a.mu.Unlock()
	return nil
}

// Lookup returns the registry entry matching any of the given
// candidate keys (base denom, display unit, symbol), case-insensitively,
// in order. A nil receiver always misses, so a disabled registry
// (UseChainRegistry=false, never started) is a safe no-op.
func (a *AssetRegistry) Lookup(candidates ...string) (*RegistryAsset, bool) {
	if a == nil {
		return nil, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if entry, ok := a.byKey[strings.ToLower(c)]; ok {
			return entry, true
		}
	}
	return nil, false
}

package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssetRegistry_NilReceiverAlwaysMisses(t *testing.T) {
	var reg *AssetRegistry
	_, ok := reg.Lookup("uzig", "ZIG")
	assert.False(t, ok)
}

func TestAssetRegistry_LookupIsCaseInsensitiveAndTriesEachCandidate(t *testing.T) {
	reg := NewAssetRegistry(10, nil)
	reg.byKey["uzig"] = &RegistryAsset{Name: "ZIGChain", Symbol: "ZIG"}

	entry, ok := reg.Lookup("", "OTHER", "UZIG")
	assert.True(t, ok)
	assert.Equal(t, "ZIGChain", entry.Name)
}

func TestAssetRegistry_LookupMissWhenNoCandidateMatches(t *testing.T) {
	reg := NewAssetRegistry(10, nil)
	reg.byKey["uzig"] = &RegistryAsset{Name: "ZIGChain"}

	_, ok := reg.Lookup("uatom", "ATOM")
	assert.False(t, ok)
}

package token

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zigscan/amm-indexer/models"
)

func TestClassifyDenom(t *testing.T) {
	assert.Equal(t, models.TokenKindNative, classifyDenom("uzig"))
	assert.Equal(t, models.TokenKindIBC, classifyDenom("ibc/ABCD1234"))
	assert.Equal(t, models.TokenKindFactory, classifyDenom("factory/zig1abc/ALPHA"))
	assert.Equal(t, models.TokenKindCW20, classifyDenom("zig1contractaddresshere"))
}

func TestResolveExponent_IBCDefaultsToSix(t *testing.T) {
	exp, symbol, unit := resolveExponent("uatom", models.TokenKindIBC)
	assert.Equal(t, 6, exp)
	assert.Empty(t, symbol)
	assert.Empty(t, unit)
}

func TestResolveExponent_NativeDenomAlwaysSix(t *testing.T) {
	exp, symbol, unit := resolveExponent("uzig", models.TokenKindNative)
	assert.Equal(t, models.DefaultExponent, exp)
	assert.Empty(t, symbol)
	assert.Empty(t, unit)
}

func TestResolveExponent_UPrefixPatternOnNonNativeIsUnresolved(t *testing.T) {
	exp, symbol, unit := resolveExponent("ualpha", models.TokenKindFactory)
	assert.Equal(t, 0, exp)
	assert.Equal(t, "alpha", symbol)
	assert.Equal(t, "alpha", unit)
}

func TestResolveExponent_NoPatternIsUnresolved(t *testing.T) {
	exp, symbol, unit := resolveExponent("factory/zig1abc/ALPHA", models.TokenKindFactory)
	assert.Equal(t, 0, exp)
	assert.Empty(t, symbol)
	assert.Empty(t, unit)
}

func TestMergeNonNull_NeverClobbersWithNull(t *testing.T) {
	existingName := "Existing Name"
	existing := &models.Token{Name: &existingName}
	patch := &models.Token{Name: nil, Symbol: strPtr("NEW")}

	MergeNonNull(existing, patch)

	assert.Equal(t, "Existing Name", *existing.Name)
	assert.Equal(t, "NEW", *existing.Symbol)
}

func TestMergeNonNull_OverwritesWhenPatchHasValue(t *testing.T) {
	existing := &models.Token{Name: strPtr("Old")}
	patch := &models.Token{Name: strPtr("New")}

	MergeNonNull(existing, patch)

	assert.Equal(t, "New", *existing.Name)
}

func TestSetResolved_AlwaysOverwrites(t *testing.T) {
	existing := &models.Token{Kind: models.TokenKindCW20, Exponent: models.DefaultExponent}
	SetResolved(existing, models.TokenKindIBC, 6)
	assert.Equal(t, models.TokenKindIBC, existing.Kind)
	assert.Equal(t, 6, existing.Exponent)
}

func strPtr(s string) *string { return &s }

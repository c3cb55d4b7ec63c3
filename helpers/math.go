// Package helpers collects small, dependency-free numeric utilities used
// across the indexer, grounded on the teacher's own math.go (which wraps
// math/big for chain amounts that exceed int64/float64 precision).
package helpers

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var errParseBigInt = errors.New("helpers: cannot parse base-unit integer")

// AddBaseAmounts adds two base-unit integers given as decimal strings.
func AddBaseAmounts(x, y string) (string, error) {
	xAmount, ok := new(big.Int).SetString(x, 10)
	if !ok {
		return "", errParseBigInt
	}
	yAmount, ok := new(big.Int).SetString(y, 10)
	if !ok {
		return "", errParseBigInt
	}
	return new(big.Int).Add(xAmount, yAmount).String(), nil
}

// ToDisplay converts a base-unit integer string to a DISPLAY-unit decimal
// given the token's exponent: DISPLAY = BASE × 10⁻ᵉˣᵖ.
func ToDisplay(base string, exponent int) (decimal.Decimal, error) {
	amount, ok := new(big.Int).SetString(base, 10)
	if !ok {
		return decimal.Decimal{}, errParseBigInt
	}
	return decimal.NewFromBigInt(amount, 0).Shift(int32(-exponent)), nil
}

// FromDisplay converts a DISPLAY-unit decimal back to a base-unit integer
// string given the token's exponent.
func FromDisplay(disp decimal.Decimal, exponent int) string {
	return disp.Shift(int32(exponent)).Truncate(0).String()
}

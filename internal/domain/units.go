package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// DefaultDecimals is the fixed-point precision used when none is configured
	DefaultDecimals int32 = 18

	// totalExponent scales the raw upstream total down to billions
	totalExponent int32 = 9

	// totalPlaces is the precision kept after scaling, before fixed-point conversion
	totalPlaces int32 = 6
)

// ParseUnits converts a decimal string into a fixed-point integer scaled by
// 10^decimals. It fails when the fractional part has more digits than decimals.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("%w: negative decimals %d", ErrInvalidAmount, decimals)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, amount, err)
	}

	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, amount, decimals)
	}

	return scaled.BigInt(), nil
}

// FormatUnits renders a fixed-point integer in human units.
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return ""
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

// ScaleTotal converts the raw upstream total into the fixed-point feed value:
// divide by 10^9, round to 6 places, then scale by 10^decimals.
func ScaleTotal(rawTotal string, decimals int32) (*big.Int, error) {
	total, err := decimal.NewFromString(rawTotal)
	if err != nil {
		return nil, fmt.Errorf("%w: total %q: %v", ErrInvalidAmount, rawTotal, err)
	}

	rounded := total.Shift(-totalExponent).Round(totalPlaces)
	return ParseUnits(rounded.StringFixed(totalPlaces), decimals)
}

// Package spread computes the relative price difference between two market data sources.
package spread

import (
	"errors"
	"math"
)

// ErrZeroReference means the reference (source A) price was zero and no spread can be computed.
var ErrZeroReference = errors.New("reference price is zero")

// Direction indicates which side trades at a premium.
type Direction string

const (
	BPremium Direction = "B_PREMIUM" // B above A: buy on A, sell on B
	APremium Direction = "A_PREMIUM" // A above B: sell on A, buy on B
	Flat     Direction = "FLAT"
)

// Evaluate returns (priceB - priceA) / priceA * 100.
// A positive value means source B trades at a premium to source A.
func Evaluate(priceA, priceB float64) (float64, error) {
	if priceA == 0 {
		return 0, ErrZeroReference
	}
	return (priceB - priceA) / priceA * 100, nil
}

// Classify maps a spread percent to its Direction.
func Classify(spreadPercent float64) Direction {
	switch {
	case spreadPercent > 0:
		return BPremium
	case spreadPercent < 0:
		return APremium
	default:
		return Flat
	}
}

// Magnitude is the absolute size of a spread, used for threshold and dedup comparisons.
func Magnitude(spreadPercent float64) float64 {
	return math.Abs(spreadPercent)
}

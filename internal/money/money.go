// Package money provides the cents/decimal conversions, fee formulas and
// rounding rules shared by the settlement processors. All functions are pure.
package money

import "math"

// Card processing rates. ExtraRate applies to cards issued outside the
// platform's home country.
const (
	BaseRate  = 0.029
	FixedFee  = 0.30
	ExtraRate = 0.015
)

// ToCents converts a decimal dollar amount to integer cents.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents converts integer cents to a decimal dollar amount.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// RoundToCents rounds a decimal dollar amount to the nearest cent.
func RoundToCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// Fee computes the processing fee for a charge of the given amount.
// extraRate is ExtraRate for foreign-issued cards, 0 otherwise.
func Fee(amount, extraRate float64) float64 {
	return RoundToCents(amount*(BaseRate+extraRate) + FixedFee)
}

// ReverseFee computes the gross charge needed so that, after the processing
// fee is taken, the given net amount remains. It is the left inverse of Fee
// within one cent of rounding.
func ReverseFee(netOwed, extraRate float64) float64 {
	return RoundToCents((netOwed + FixedFee) / (1 - BaseRate - extraRate))
}

// SplitCents breaks totalCents into n shares. Every share gets the floor of
// the even division; the integer remainder lands entirely on share 0 so the
// shares always sum back to totalCents.
func SplitCents(totalCents int64, n int) []int64 {
	if n < 1 {
		return nil
	}
	base := totalCents / int64(n)
	remainder := totalCents % int64(n)
	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
	}
	shares[0] += remainder
	return shares
}

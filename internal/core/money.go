package core

import "github.com/shopspring/decimal"

// RoundAmount rounds a currency amount to cents.
func RoundAmount(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// SumPrices adds prices in decimal so float drift does not leak into totals.
func SumPrices(items []Transaction) float64 {
	sum := decimal.Zero
	for _, t := range items {
		sum = sum.Add(decimal.NewFromFloat(t.Price))
	}
	return sum.Round(2).InexactFloat64()
}

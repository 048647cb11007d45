package core

import "fmt"

// PriceBucket is one bar of the price histogram. A price p belongs to the
// bucket when Lower < p <= Upper; a missing bound is open.
type PriceBucket struct {
	Label    string
	Lower    float64
	Upper    float64
	HasLower bool
	HasUpper bool
}

// Contains reports whether price falls in the bucket.
func (b PriceBucket) Contains(price float64) bool {
	if b.HasLower && price <= b.Lower {
		return false
	}
	if b.HasUpper && price > b.Upper {
		return false
	}
	return true
}

var priceBuckets = buildPriceBuckets()

func buildPriceBuckets() []PriceBucket {
	out := make([]PriceBucket, 0, 10)
	out = append(out, PriceBucket{Label: "0-100", Upper: 100, HasUpper: true})
	for lower := 100; lower < 900; lower += 100 {
		out = append(out, PriceBucket{
			Label:    fmt.Sprintf("%d-%d", lower+1, lower+100),
			Lower:    float64(lower),
			Upper:    float64(lower + 100),
			HasLower: true,
			HasUpper: true,
		})
	}
	out = append(out, PriceBucket{Label: "901-above", Lower: 900, HasLower: true})
	return out
}

// PriceBuckets returns the ten histogram buckets in display order.
func PriceBuckets() []PriceBucket {
	out := make([]PriceBucket, len(priceBuckets))
	copy(out, priceBuckets)
	return out
}

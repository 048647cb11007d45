package core

import "testing"

func TestSumPrices(t *testing.T) {
	items := []Transaction{{Price: 0.1}, {Price: 0.2}, {Price: 329.85}}
	if got := SumPrices(items); got != 330.15 {
		t.Fatalf("SumPrices = %v, want 330.15", got)
	}
	if got := SumPrices(nil); got != 0 {
		t.Fatalf("SumPrices(nil) = %v, want 0", got)
	}
}

func TestRoundAmount(t *testing.T) {
	cases := map[float64]float64{
		200:       200,
		12.345:    12.35,
		0.1 + 0.2: 0.3,
	}
	for in, want := range cases {
		if got := RoundAmount(in); got != want {
			t.Fatalf("RoundAmount(%v) = %v, want %v", in, got, want)
		}
	}
}

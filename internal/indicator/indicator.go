// Package indicator provides technical indicator calculations over candle
// history, the registry of indicator types, and the stateful manager that
// owns the live indicator list of one chart.
//
// Every calculator is a pure function over a full candle sequence whose
// output is aligned index-for-index with the input: warm-up positions are
// padded with a sentinel instead of shortening the series.
package indicator

// accumulator is the streaming form every calculator is built on: it receives
// one price at a time and keeps O(1) state.
type accumulator interface {
	// Update feeds the next price and recalculates.
	Update(price float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// series drives acc over every candle price and writes Value() where Ready,
// warmup elsewhere. The result always has len(prices) entries.
func series(acc accumulator, prices []float64, warmup float64) []float64 {
	out := make([]float64, len(prices))
	for i, p := range prices {
		acc.Update(p)
		if acc.Ready() {
			out[i] = acc.Value()
		} else {
			out[i] = warmup
		}
	}
	return out
}

package indicator

import "advchart/internal/model"

// RSINeutral is the value RSI reports while warming up.
const RSINeutral = 50.0

// RSI calculates the Relative Strength Index using Wilder's smoothing method.
// Update is O(1) per candle; no history scans.
//
// A zero average loss is replaced by 1 in the gain/loss ratio, so a window
// without losses yields 100-100/(1+avgGain) instead of dividing by zero.
type RSI struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSI creates a new RSI accumulator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{period: period, current: RSINeutral}
}

func (r *RSI) Update(price float64) {
	r.count++

	if r.count == 1 {
		// First candle: record price, no delta yet
		r.prevClose = price
		return
	}

	delta := price - r.prevClose
	r.prevClose = price

	gain := 0.0
	loss := 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.count <= r.period+1 {
		// Accumulation phase: build initial averages
		r.avgGain += gain
		r.avgLoss += loss

		if r.count == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
			r.current = rsiValue(r.avgGain, r.avgLoss)
		}
		return
	}

	// Wilder's smoothing: avgGain = (prevAvgGain * (period-1) + gain) / period
	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.current = rsiValue(r.avgGain, r.avgLoss)
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.count > r.period }

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		avgLoss = 1
	}
	rs := avgGain / avgLoss
	v := 100.0 - (100.0 / (1.0 + rs))
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// CalculateRSI returns RSI over period price deltas of src on a 0–100 scale.
// Warm-up indices hold RSINeutral; with fewer than period+1 candles every
// index does.
func CalculateRSI(candles []model.Candle, period int, src Source) []float64 {
	n := len(candles)
	if n < period+1 {
		out := make([]float64, n)
		for i := range out {
			out[i] = RSINeutral
		}
		return out
	}
	out := series(NewRSI(period), prices(candles, src), RSINeutral)
	return padToLength(out, n)
}

// padToLength repeats the last value when out is exactly one short of n.
// Any other mismatch is left for the caller's length check to reject.
func padToLength(out []float64, n int) []float64 {
	if len(out) == n-1 && len(out) > 0 {
		out = append(out, out[len(out)-1])
	}
	return out
}

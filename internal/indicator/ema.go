package indicator

import (
	"math"

	"advchart/internal/model"
)

// EMA calculates Exponential Moving Average.
// O(1) per update; no window storage needed.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA accumulator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Update(price float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	// EMA = (Price * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// CalculateEMA returns the SMA-seeded exponential moving average.
// Indices before period-1 are NaN.
func CalculateEMA(candles []model.Candle, period int, src Source) []float64 {
	return series(NewEMA(period), prices(candles, src), math.NaN())
}

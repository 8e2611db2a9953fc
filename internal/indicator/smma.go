package indicator

import (
	"math"

	"advchart/internal/model"
)

// SMMA calculates Smoothed Moving Average (Wilder-style smoothing).
// First value is SMA(period), then SMMA = (prev*(period-1) + price) / period.
type SMMA struct {
	period  int
	count   int
	sum     float64
	current float64
}

// NewSMMA creates a new SMMA accumulator with the given period.
func NewSMMA(period int) *SMMA {
	return &SMMA{period: period}
}

func (s *SMMA) Update(price float64) {
	s.count++

	if s.count <= s.period {
		s.sum += price
		if s.count == s.period {
			s.current = s.sum / float64(s.period)
		}
		return
	}

	s.current = (s.current*float64(s.period-1) + price) / float64(s.period)
}

func (s *SMMA) Value() float64 { return s.current }
func (s *SMMA) Ready() bool    { return s.count >= s.period }

// CalculateSMMA returns the Wilder-smoothed moving average.
// Indices before period-1 are NaN.
func CalculateSMMA(candles []model.Candle, period int, src Source) []float64 {
	return series(NewSMMA(period), prices(candles, src), math.NaN())
}

package model

import (
	"encoding/json"
	"sort"
)

// Candle is one OHLCV sample as the chart sees it.
// Time is the bucket start in unix milliseconds and is the sort key of a
// candle sequence; it is strictly increasing within one sequence.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Color  string  `json:"color,omitempty"` // optional display override, "#rrggbb"
}

// Bullish reports whether the candle closed at or above its open.
func (c *Candle) Bullish() bool {
	return c.Close >= c.Open
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// IndexOfTime returns the index of the candle whose Time equals ts, or -1.
// The sequence must be sorted by Time.
func IndexOfTime(candles []Candle, ts int64) int {
	i := sort.Search(len(candles), func(i int) bool { return candles[i].Time >= ts })
	if i < len(candles) && candles[i].Time == ts {
		return i
	}
	return -1
}

// Upsert appends c to the sequence, or replaces the last candle when it
// shares the same bucket. Candles older than the last one are dropped.
// The input slice is never modified; a new slice is returned when it changes.
func Upsert(candles []Candle, c Candle) ([]Candle, bool) {
	n := len(candles)
	if n > 0 {
		last := candles[n-1]
		switch {
		case c.Time < last.Time:
			return candles, false
		case c.Time == last.Time:
			out := make([]Candle, n)
			copy(out, candles)
			out[n-1] = c
			return out, true
		}
	}
	out := make([]Candle, n, n+1)
	copy(out, candles)
	return append(out, c), true
}

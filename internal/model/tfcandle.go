package model

import (
	"encoding/json"
	"time"
)

// TFCandle is a resampled OHLC candle as stored by the market-data pipeline.
// TF is the timeframe duration in seconds (e.g., 60 = 1 minute).
// All prices are in paise (int64) to avoid floating-point drift at rest.
type TFCandle struct {
	Token    string    `json:"token"`
	Exchange string    `json:"exchange"`
	TF       int       `json:"tf"`      // timeframe in seconds
	TS       time.Time `json:"ts"`      // bucket start time (UTC, TF-aligned)
	Open     int64     `json:"open"`    // paise
	High     int64     `json:"high"`    // paise
	Low      int64     `json:"low"`     // paise
	Close    int64     `json:"close"`   // paise
	Volume   int64     `json:"volume"`  // cumulative quantity
	Count    int       `json:"count"`   // number of 1s candles merged
	Forming  bool      `json:"forming"` // true if bucket is still open
}

// Key returns "exchange:token".
func (c *TFCandle) Key() string {
	return c.Exchange + ":" + c.Token
}

// Channel returns the pubsub channel the pipeline publishes this candle on:
// "pub:candle:{TF}s:{exchange}:{token}".
func (c *TFCandle) Channel() string {
	return CandleChannel(c.TF, c.Exchange, c.Token)
}

// CandleChannel builds the pubsub channel name for a TF candle stream.
func CandleChannel(tf int, exchange, token string) string {
	return "pub:candle:" + Itoa(tf) + "s:" + exchange + ":" + token
}

// ToCandle converts the stored paise candle into the chart's float model.
func (c *TFCandle) ToCandle() Candle {
	return Candle{
		Time:   c.TS.UnixMilli(),
		Open:   PaiseToFloat(c.Open),
		High:   PaiseToFloat(c.High),
		Low:    PaiseToFloat(c.Low),
		Close:  PaiseToFloat(c.Close),
		Volume: float64(c.Volume),
	}
}

// JSON returns the JSON-encoded TF candle.
func (c *TFCandle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// ToCandles converts a slice of stored candles, preserving order.
func ToCandles(tfcs []TFCandle) []Candle {
	out := make([]Candle, 0, len(tfcs))
	for i := range tfcs {
		out = append(out, tfcs[i].ToCandle())
	}
	return out
}

package model

import "context"

// Storage and transport ports. The chart service and the candle simulator
// depend on these rather than on the Redis or SQLite packages directly.

// HistoryReader loads closed TF candles for one instrument.
type HistoryReader interface {
	// LatestTFCandles returns up to limit of the newest candles, oldest first.
	LatestTFCandles(ctx context.Context, exchange, token string, tf, limit int) ([]TFCandle, error)
}

// CandleSink persists closed TF candles. Writes are upserts keyed by
// (exchange, token, tf, ts).
type CandleSink interface {
	InsertTFCandles(candles []TFCandle) error
}

// CandlePublisher pushes forming and closed candles to live subscribers.
type CandlePublisher interface {
	Publish(ctx context.Context, c TFCandle) (int64, error)
}

package sim

import (
	"time"

	"advchart/internal/model"
)

// Tick is a single trade.
type Tick struct {
	TS    time.Time
	Price int64 // paise
	Qty   int64
}

// Builder folds ticks for one instrument into TF candles. A candle is
// finalized when a tick lands in a later bucket. Not safe for concurrent
// use.
type Builder struct {
	exchange string
	token    string
	tf       int64

	bucket  int64 // bucket start, unix seconds
	candle  model.TFCandle
	started bool

	// StaleTolerance rejects ticks older than the forming bucket start by
	// more than this. Zero accepts any tick for the current bucket.
	StaleTolerance time.Duration

	OnClose func(c model.TFCandle) // optional
	OnStale func(t Tick)           // optional
}

// NewBuilder returns a builder for tf-second candles.
func NewBuilder(exchange, token string, tf int) *Builder {
	if tf <= 0 {
		tf = 60
	}
	return &Builder{
		exchange:       exchange,
		token:          token,
		tf:             int64(tf),
		StaleTolerance: 2 * time.Second,
	}
}

// Add merges t into the forming candle. It returns a snapshot of the
// forming candle and, when t opened a new bucket, the candle it closed.
// ok is false when the tick was rejected as stale.
func (b *Builder) Add(t Tick) (forming model.TFCandle, closed *model.TFCandle, ok bool) {
	sec := t.TS.Unix()
	bucket := sec - sec%b.tf

	if b.started && bucket < b.bucket {
		if b.StaleTolerance > 0 && time.Unix(b.bucket, 0).Sub(t.TS) > b.StaleTolerance {
			if b.OnStale != nil {
				b.OnStale(t)
			}
			return b.candle, nil, false
		}
		// Late but tolerated ticks fold into the forming bucket.
		bucket = b.bucket
	}

	if b.started && bucket != b.bucket {
		done := b.candle
		done.Forming = false
		closed = &done
		if b.OnClose != nil {
			b.OnClose(done)
		}
		b.started = false
	}

	if !b.started {
		b.bucket = bucket
		b.candle = model.TFCandle{
			Token:    b.token,
			Exchange: b.exchange,
			TF:       int(b.tf),
			TS:       time.Unix(bucket, 0).UTC(),
			Open:     t.Price,
			High:     t.Price,
			Low:      t.Price,
			Close:    t.Price,
			Volume:   t.Qty,
			Count:    1,
			Forming:  true,
		}
		b.started = true
		return b.candle, closed, true
	}

	if t.Price > b.candle.High {
		b.candle.High = t.Price
	}
	if t.Price < b.candle.Low {
		b.candle.Low = t.Price
	}
	b.candle.Close = t.Price
	b.candle.Volume += t.Qty
	b.candle.Count++
	return b.candle, closed, true
}

// Flush finalizes and returns the forming candle, if any.
func (b *Builder) Flush() (model.TFCandle, bool) {
	if !b.started {
		return model.TFCandle{}, false
	}
	done := b.candle
	done.Forming = false
	b.started = false
	if b.OnClose != nil {
		b.OnClose(done)
	}
	return done, true
}

// identity returns an empty candle carrying the builder's instrument and
// timeframe.
func (b *Builder) identity() (model.TFCandle, bool) {
	return model.TFCandle{Exchange: b.exchange, Token: b.token, TF: int(b.tf)}, b.exchange != "" && b.token != ""
}

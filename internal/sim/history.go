package sim

import (
	"time"

	"advchart/internal/markethours"
	"advchart/internal/model"
)

// ticksPerCandle is how many walker steps make one history candle.
const ticksPerCandle = 12

// HistoryOptions controls History.
type HistoryOptions struct {
	Exchange string
	Token    string
	TF       int
	// End is exclusive; the newest candle is the last full bucket before it.
	End time.Time
	N   int
	// Sessions restricts buckets to exchange trading hours. Ignored for
	// timeframes above one hour.
	Sessions bool
}

// History generates N closed candles ending before End, oldest first. The
// walker is advanced through the whole series, so a live feed continuing
// from the same walker picks up where the history left off.
func History(w *Walker, opt HistoryOptions) []model.TFCandle {
	if opt.N <= 0 {
		return nil
	}
	tf := int64(opt.TF)
	if tf <= 0 {
		tf = 60
	}
	step := time.Duration(tf) * time.Second

	sessions := opt.Sessions && step <= time.Hour

	buckets := make([]time.Time, 0, opt.N)
	end := opt.End.Unix()
	ts := time.Unix(end-end%tf, 0).UTC().Add(-step)
	for len(buckets) < opt.N {
		if sessions && !markethours.IsMarketOpen(ts) {
			// Jump to the last bucket of the previous session.
			last := markethours.PrevClose(ts).Unix() - 1
			ts = time.Unix(last-last%tf, 0).UTC()
			continue
		}
		buckets = append(buckets, ts)
		ts = ts.Add(-step)
	}

	b := NewBuilder(opt.Exchange, opt.Token, int(tf))
	b.StaleTolerance = 0
	spacing := step / ticksPerCandle
	out := make([]model.TFCandle, 0, opt.N)
	for i := len(buckets) - 1; i >= 0; i-- {
		for k := 0; k < ticksPerCandle; k++ {
			price, qty := w.Next()
			if _, closed, _ := b.Add(Tick{TS: buckets[i].Add(time.Duration(k) * spacing), Price: price, Qty: qty}); closed != nil {
				out = append(out, *closed)
			}
		}
	}
	if last, ok := b.Flush(); ok {
		out = append(out, last)
	}
	return out
}

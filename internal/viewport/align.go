package viewport

import (
	"log/slog"
	"math"

	"advchart/internal/model"
)

// Slice is the part of a full-length indicator series that lines up with a
// window of visible candles.
type Slice struct {
	Data   []float64
	Offset int  // index of Data[0] in the full history
	Exact  bool // false when the proportional fallback was used
}

// Aligner locates the indicator sub-series for a visible candle window.
type Aligner struct {
	log        *slog.Logger
	onFallback func()
}

// NewAligner returns an Aligner that logs fallbacks to log and calls
// onFallback (if non-nil) each time one happens.
func NewAligner(log *slog.Logger, onFallback func()) *Aligner {
	if log == nil {
		log = slog.Default()
	}
	return &Aligner{log: log, onFallback: onFallback}
}

// Slice returns data[first:last+1] where first/last are the positions of the
// first and last visible candle's Time in full. When either timestamp is
// missing, or data is shorter than full, it falls back to slicing data
// proportionally by the visible window's share of the full time span and
// logs a warning. It never panics and returns a non-empty slice whenever
// data and visible are non-empty.
func (a *Aligner) Slice(full, visible []model.Candle, data []float64) Slice {
	if len(visible) == 0 || len(data) == 0 || len(full) == 0 {
		return Slice{Exact: true}
	}
	firstTS := visible[0].Time
	lastTS := visible[len(visible)-1].Time
	first := model.IndexOfTime(full, firstTS)
	last := model.IndexOfTime(full, lastTS)
	if first >= 0 && last >= first && last < len(data) {
		return Slice{Data: data[first : last+1], Offset: first, Exact: true}
	}

	start, end := proportional(full, firstTS, lastTS, len(data))
	a.log.Warn("indicator alignment fallback",
		slog.Int64("first_ts", firstTS),
		slog.Int64("last_ts", lastTS),
		slog.Int("history_len", len(full)),
		slog.Int("data_len", len(data)),
		slog.Int("start", start),
		slog.Int("end", end),
	)
	if a.onFallback != nil {
		a.onFallback()
	}
	return Slice{Data: data[start : end+1], Offset: start}
}

// proportional maps [firstTS, lastTS] onto [0, n-1] by the ratio of each
// timestamp to the full history's time span. The returned bounds are
// inclusive and always valid for a slice of length n.
func proportional(full []model.Candle, firstTS, lastTS int64, n int) (start, end int) {
	t0 := full[0].Time
	span := float64(full[len(full)-1].Time - t0)
	ratio := func(ts int64) float64 {
		if span <= 0 {
			return 0
		}
		r := float64(ts-t0) / span
		return math.Max(0, math.Min(1, r))
	}
	maxIdx := float64(n - 1)
	start = int(math.Floor(ratio(firstTS) * maxIdx))
	end = int(math.Ceil(ratio(lastTS) * maxIdx))
	if span <= 0 {
		end = n - 1
	}
	if end < start {
		end = start
	}
	return clamp(start, 0, n-1), clamp(end, 0, n-1)
}

// Package viewport maps between logical candle-index space and pixel space.
//
// Every renderer (price pane, overlays, stacked panels) goes through X so
// candles and indicator lines stay pixel-aligned under pan and zoom.
package viewport

import (
	"math"

	"advchart/internal/draw"
	"advchart/internal/model"
)

const (
	// BufferRatio is the share of the visible candle count added on each
	// side before price-range computation.
	BufferRatio = 0.1
	// MaxBuffer caps the per-side buffer in candles.
	MaxBuffer = 50
	// PricePadRatio expands the price range on both ends.
	PricePadRatio = 0.1
)

// Range is the viewport expressed as fractional indices into the full
// candle history.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Span returns End - Start.
func (r Range) Span() float64 { return r.End - r.Start }

// Valid reports whether the range has a positive, finite span.
func (r Range) Valid() bool {
	s := r.Span()
	return s > 0 && !math.IsInf(s, 0) && !math.IsNaN(s)
}

// Shift moves the range by delta candles.
func (r Range) Shift(delta float64) Range {
	return Range{Start: r.Start + delta, End: r.End + delta}
}

// X maps logical index i to an x pixel: ((i - start) / span) * width.
func X(i float64, r Range, width float64) float64 {
	span := r.Span()
	if span <= 0 {
		return 0
	}
	return (i - r.Start) / span * width
}

// IndexAt is the inverse of X.
func IndexAt(x float64, r Range, width float64) float64 {
	if width <= 0 {
		return r.Start
	}
	return r.Start + x/width*r.Span()
}

// Y maps value v into area, with hi at the top edge and lo at the bottom.
func Y(v, lo, hi float64, area draw.Rect) float64 {
	if hi <= lo {
		return area.Y + area.H/2
	}
	return area.Y + (hi-v)/(hi-lo)*area.H
}

// View bundles the geometry every renderer needs to place candle i.
type View struct {
	Range Range
	Width float64
	Total int // length of the full candle history
}

// X maps logical index i with the shared formula.
func (v View) X(i float64) float64 { return X(i, v.Range, v.Width) }

// IndexAt maps an x pixel back to a fractional index.
func (v View) IndexAt(x float64) float64 { return IndexAt(x, v.Range, v.Width) }

// CandleWidth is the pixel distance between consecutive candles.
func (v View) CandleWidth() float64 {
	span := v.Range.Span()
	if span <= 0 {
		return 0
	}
	return v.Width / span
}

// Visible returns the half-open index window [from, to) of candles that
// intersect the range, clamped to the history.
func (v View) Visible() (from, to int) {
	from = int(math.Floor(v.Range.Start))
	to = int(math.Ceil(v.Range.End))
	return clamp(from, 0, v.Total), clamp(to, 0, v.Total)
}

// Buffered widens Visible by BufferSize candles on each side.
func (v View) Buffered() (from, to int) {
	from, to = v.Visible()
	buf := BufferSize(to - from)
	return clamp(from-buf, 0, v.Total), clamp(to+buf, 0, v.Total)
}

// BufferSize returns the per-side buffer for a visible candle count.
func BufferSize(visible int) int {
	if visible <= 0 {
		return 0
	}
	b := int(math.Ceil(float64(visible) * BufferRatio))
	if b > MaxBuffer {
		b = MaxBuffer
	}
	return b
}

// PriceRange returns the lowest low and highest high of candles, padded by
// PadRange. An empty slice yields [0, 1].
func PriceRange(candles []model.Candle) (lo, hi float64) {
	if len(candles) == 0 {
		return 0, 1
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := range candles {
		if candles[i].Low < lo {
			lo = candles[i].Low
		}
		if candles[i].High > hi {
			hi = candles[i].High
		}
	}
	return PadRange(lo, hi)
}

// PadRange expands [lo, hi] by PricePadRatio of its span on both ends.
// A non-negative lo never drops below 0. A flat range gets a synthetic span.
func PadRange(lo, hi float64) (float64, float64) {
	span := hi - lo
	if span <= 0 {
		span = math.Max(math.Abs(hi)*0.01, 1)
	}
	pad := span * PricePadRatio
	plo := lo - pad
	if lo >= 0 && plo < 0 {
		plo = 0
	}
	return plo, hi + pad
}

// LinePath builds a polyline through data, where data[k] belongs to candle
// offset+k. Points that are NaN or whose x lies more than one candle width
// outside [0, v.Width] break the line; consecutive valid points are
// connected. The one-candle margin lets a cached path be shifted by up to a
// candle without gaps at the edges; callers clip to [0, v.Width] with
// draw.Path.ClipX before painting.
func LinePath(v View, offset int, data []float64, y func(float64) float64) draw.Path {
	var p draw.Path
	margin := v.CandleWidth()
	penDown := false
	for k, val := range data {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			penDown = false
			continue
		}
		x := v.X(float64(offset + k))
		if x < -margin || x > v.Width+margin {
			penDown = false
			continue
		}
		if penDown {
			p.LineTo(x, y(val))
		} else {
			p.MoveTo(x, y(val))
			penDown = true
		}
	}
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package session

import (
	"math"

	"advchart/internal/draw"
	"advchart/internal/viewport"
)

const (
	// MinSpan is the narrowest zoom, in candles.
	MinSpan = 5
	// SpanMargin is how far past the history length the widest zoom reaches.
	SpanMargin = 10
	// DefaultSpan is the number of candles shown by a new viewer.
	DefaultSpan = 80
	// RightMargin is the empty space, in candles, right of the newest candle
	// in a new viewer.
	RightMargin = 2

	DefaultWidth  = 1200
	DefaultHeight = 700
	// MaxWidth and MaxHeight bound the pixel size of a rendered frame.
	MaxWidth  = 4096
	MaxHeight = 4096
)

// Viewer is one client's view of a chart: its visible range, pixel size,
// theme and drag state. It is not safe for concurrent use; each connection
// owns one.
type Viewer struct {
	Range    viewport.Range `json:"range"`
	Width    float64        `json:"width"`
	Height   float64        `json:"height"`
	Theme    draw.Theme     `json:"theme"`
	Dragging bool           `json:"dragging"`

	lastX float64
}

// NewViewer shows the newest DefaultSpan candles of a history of total.
func NewViewer(total int, width, height float64, theme draw.Theme) *Viewer {
	width = fitDim(width, DefaultWidth, MaxWidth)
	height = fitDim(height, DefaultHeight, MaxHeight)
	end := float64(total + RightMargin)
	v := &Viewer{
		Range:  viewport.Range{Start: end - DefaultSpan, End: end},
		Width:  width,
		Height: height,
		Theme:  theme,
	}
	v.Clamp(total)
	return v
}

// SetRange replaces the visible range, then clamps it.
func (v *Viewer) SetRange(r viewport.Range, total int) {
	if !r.Valid() {
		return
	}
	v.Range = r
	v.Clamp(total)
}

// Resize changes the pixel size. Values below one pixel or not finite are
// ignored; larger ones are capped at MaxWidth and MaxHeight.
func (v *Viewer) Resize(width, height float64) {
	v.Width = fitDim(width, v.Width, MaxWidth)
	v.Height = fitDim(height, v.Height, MaxHeight)
}

// fitDim returns want capped at limit, or current when want is unusable.
func fitDim(want, current, limit float64) float64 {
	if math.IsNaN(want) || math.IsInf(want, 0) || want < 1 {
		return current
	}
	return math.Min(want, limit)
}

// DragStart begins a pan gesture at pixel x.
func (v *Viewer) DragStart(x float64) {
	v.Dragging = true
	v.lastX = x
}

// DragMove pans so the content follows the pointer: moving right by dx
// pixels reveals dx / width * span older candles.
func (v *Viewer) DragMove(x float64, total int) {
	if !v.Dragging {
		v.DragStart(x)
		return
	}
	dx := x - v.lastX
	v.lastX = x
	if v.Width <= 0 || dx == 0 {
		return
	}
	v.Range = v.Range.Shift(-dx / v.Width * v.Range.Span())
	v.Clamp(total)
}

// DragEnd finishes the pan gesture.
func (v *Viewer) DragEnd() {
	v.Dragging = false
}

// Zoom scales the span by factor (>1 zooms out) keeping the candle under
// pixel x in place.
func (v *Viewer) Zoom(factor, x float64, total int) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) || v.Width <= 0 {
		return
	}
	anchor := viewport.IndexAt(x, v.Range, v.Width)
	span := clampSpan(v.Range.Span()*factor, total)
	frac := x / v.Width
	start := anchor - frac*span
	v.Range = viewport.Range{Start: start, End: start + span}
	v.Clamp(total)
}

// Follow keeps a viewer that was showing the newest candle pinned to the
// right edge when the history grows from prev to total candles.
func (v *Viewer) Follow(prev, total int) {
	if total <= prev || v.Dragging {
		return
	}
	if v.Range.End >= float64(prev) {
		v.Range = v.Range.Shift(float64(total - prev))
		v.Clamp(total)
	}
}

// Clamp bounds the span to [MinSpan, total+SpanMargin] and keeps at least
// half a screen of history visible on either side.
func (v *Viewer) Clamp(total int) {
	span := clampSpan(v.Range.Span(), total)
	start := v.Range.Start
	if !v.Range.Valid() {
		start = float64(total) - span
	}
	minStart := -span / 2
	maxEnd := float64(total) + span/2
	if start+span > maxEnd {
		start = maxEnd - span
	}
	if start < minStart {
		start = minStart
	}
	v.Range = viewport.Range{Start: start, End: start + span}
}

func clampSpan(span float64, total int) float64 {
	hi := math.Max(MinSpan, float64(total+SpanMargin))
	if math.IsNaN(span) || span < MinSpan {
		return MinSpan
	}
	return math.Min(span, hi)
}

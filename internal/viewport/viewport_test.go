package viewport

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advchart/internal/draw"
	"advchart/internal/model"
)

func history(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = model.Candle{Time: int64(1_000 + i*60_000), Open: p, High: p + 2, Low: p - 2, Close: p + 1, Volume: 10}
	}
	return out
}

func TestX_SharedFormula(t *testing.T) {
	r := Range{Start: 10.5, End: 60.5}
	const width = 800.0

	assert.Equal(t, 0.0, X(10.5, r, width))
	assert.InDelta(t, width, X(60.5, r, width), 1e-9)
	assert.InDelta(t, 400.0, X(35.5, r, width), 1e-9)

	// pure: repeated calls agree
	for i := 0; i < 3; i++ {
		assert.Equal(t, X(42, r, width), X(42, r, width))
	}

	// approaches width as i approaches End
	assert.Less(t, X(60.4, r, width), width)
	assert.Greater(t, X(60.4, r, width), X(60, r, width))

	v := View{Range: r, Width: width, Total: 100}
	assert.Equal(t, X(20, r, width), v.X(20))
	assert.InDelta(t, 20.0, v.IndexAt(v.X(20)), 1e-9)
	assert.InDelta(t, 16.0, v.CandleWidth(), 1e-9)
}

func TestX_DegenerateRange(t *testing.T) {
	assert.Equal(t, 0.0, X(5, Range{Start: 3, End: 3}, 100))
	assert.False(t, Range{Start: 3, End: 3}.Valid())
	assert.True(t, Range{Start: 0, End: 1}.Valid())
}

func TestVisibleAndBuffered(t *testing.T) {
	v := View{Range: Range{Start: 40.3, End: 60.7}, Width: 500, Total: 100}
	from, to := v.Visible()
	assert.Equal(t, 40, from)
	assert.Equal(t, 61, to)

	bf, bt := v.Buffered()
	assert.Equal(t, 40-3, bf) // ceil(21*0.1) = 3
	assert.Equal(t, 61+3, bt)

	edge := View{Range: Range{Start: -5, End: 8}, Width: 500, Total: 10}
	bf, bt = edge.Buffered()
	assert.Equal(t, 0, bf)
	assert.Equal(t, 9, bt) // visible [0, 8) plus one buffered candle
}

func TestBufferSize_Capped(t *testing.T) {
	assert.Equal(t, 0, BufferSize(0))
	assert.Equal(t, 1, BufferSize(5))
	assert.Equal(t, 10, BufferSize(100))
	assert.Equal(t, MaxBuffer, BufferSize(10_000))
}

func TestPriceRange_Padding(t *testing.T) {
	lo, hi := PriceRange([]model.Candle{{Low: 100, High: 200}, {Low: 120, High: 150}})
	assert.InDelta(t, 90.0, lo, 1e-9)
	assert.InDelta(t, 210.0, hi, 1e-9)

	lo, _ = PadRange(1, 100)
	assert.Equal(t, 0.0, lo, "floored at zero")

	lo, hi = PadRange(50, 50)
	assert.Less(t, lo, 50.0)
	assert.Greater(t, hi, 50.0)

	lo, hi = PriceRange(nil)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestY(t *testing.T) {
	area := draw.Rect{Y: 10, H: 100}
	assert.Equal(t, 10.0, Y(200, 100, 200, area))
	assert.Equal(t, 110.0, Y(100, 100, 200, area))
	assert.Equal(t, 60.0, Y(5, 1, 1, area))
}

func TestLinePath_SkipsNaNAndOffscreen(t *testing.T) {
	v := View{Range: Range{Start: 2, End: 6}, Width: 400, Total: 10}
	data := []float64{1, 2, math.NaN(), 4, 5, 6, 7, 8}
	// data[k] belongs to candle k at x = (k-2)*100. Candles 1 and 7 sit one
	// candle width outside [0, 400] and are kept as margin; candle 0 is beyond
	// it and candle 2 is NaN.
	p := LinePath(v, 0, data, func(f float64) float64 { return f })
	assert.Equal(t, 6, p.Points())
	assert.Equal(t, 2, p.Subpaths())

	visible := p.ClipX(0, v.Width)
	assert.Equal(t, 4, visible.Points()) // candles 3,4,5,6
	assert.Equal(t, 1, visible.Subpaths())

	gap := []float64{math.NaN(), 1, 2, 3, math.NaN(), 5, 6}
	p = LinePath(v, 0, gap, func(f float64) float64 { return f })
	assert.Equal(t, 2, p.Subpaths())
}

func TestAligner_ExactSlice(t *testing.T) {
	full := history(100)
	data := make([]float64, 100)
	for i := range data {
		data[i] = float64(i)
	}
	fallbacks := 0
	a := NewAligner(nil, func() { fallbacks++ })

	s := a.Slice(full, full[20:41], data)
	require.True(t, s.Exact)
	assert.Equal(t, 20, s.Offset)
	require.Len(t, s.Data, 21)
	assert.Equal(t, 20.0, s.Data[0])
	assert.Equal(t, 40.0, s.Data[20])
	assert.Zero(t, fallbacks)
}

func TestAligner_FallbackOnMissingTimestamps(t *testing.T) {
	full := history(100)
	data := make([]float64, 100)
	for i := range data {
		data[i] = float64(i)
	}

	// corrupt the visible window so none of its timestamps exist in full
	visible := make([]model.Candle, 10)
	copy(visible, full[50:60])
	for i := range visible {
		visible[i].Time += 7
	}

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	fallbacks := 0
	a := NewAligner(log, func() { fallbacks++ })

	var s Slice
	require.NotPanics(t, func() { s = a.Slice(full, visible, data) })
	assert.False(t, s.Exact)
	assert.NotEmpty(t, s.Data)
	assert.InDelta(t, 50, s.Offset, 1)
	assert.Equal(t, 1, fallbacks)
	assert.Contains(t, buf.String(), "alignment fallback")
}

func TestAligner_FallbackWhenDataShorterThanHistory(t *testing.T) {
	full := history(100)
	data := make([]float64, 80) // indicators not yet recalculated for 20 new candles
	a := NewAligner(nil, nil)

	s := a.Slice(full, full[90:100], data)
	assert.False(t, s.Exact)
	assert.NotEmpty(t, s.Data)
	assert.LessOrEqual(t, s.Offset+len(s.Data), 80)
}

func TestAligner_OutOfRangeTimestampsStillNonEmpty(t *testing.T) {
	full := history(100)
	data := make([]float64, 100)
	visible := []model.Candle{{Time: -5_000_000}, {Time: 99_000_000_000}}
	s := NewAligner(nil, nil).Slice(full, visible, data)
	assert.NotEmpty(t, s.Data)

	s = NewAligner(nil, nil).Slice(full, nil, data)
	assert.Empty(t, s.Data)
}

// Package render paints a chart frame: candles and volume, overlay
// indicators in the price pane, then separate-panel indicators stacked
// below, in that order.
package render

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"advchart/internal/chartcache"
	"advchart/internal/draw"
	"advchart/internal/indicator"
	"advchart/internal/model"
	"advchart/internal/viewport"
)

// Frame is everything one paint needs. Indicators is a snapshot taken from
// the manager; the renderer never modifies it.
type Frame struct {
	Candles       []model.Candle
	Indicators    []indicator.Instance
	Range         viewport.Range
	Width, Height float64
	Theme         draw.Theme
	Dragging      bool
}

// View returns the shared x geometry of the frame.
func (f Frame) View() viewport.View {
	return viewport.View{Range: f.Range, Width: f.Width, Total: len(f.Candles)}
}

// Observer receives paint events. The metrics package implements it.
type Observer interface {
	PaintDone(d time.Duration)
	PanelFailed(kind indicator.Kind)
	AlignmentFallback()
}

type nopObserver struct{}

func (nopObserver) PaintDone(time.Duration)    {}
func (nopObserver) PanelFailed(indicator.Kind) {}
func (nopObserver) AlignmentFallback()         {}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger for render errors and alignment warnings.
func WithLogger(l *slog.Logger) Option { return func(r *Renderer) { r.log = l } }

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option { return func(r *Renderer) { r.obs = o } }

// Renderer paints frames. It owns no chart state besides the cache it is
// given, so one Renderer per chart is enough.
type Renderer struct {
	reg   *indicator.Registry
	cache *chartcache.Cache
	log   *slog.Logger
	obs   Observer
	align *viewport.Aligner
}

// New creates a renderer resolving definitions from reg and memoizing into
// cache.
func New(reg *indicator.Registry, cache *chartcache.Cache, opts ...Option) *Renderer {
	r := &Renderer{reg: reg, cache: cache, log: slog.Default(), obs: nopObserver{}}
	for _, opt := range opts {
		opt(r)
	}
	r.align = viewport.NewAligner(r.log, r.obs.AlignmentFallback)
	return r
}

// pass is the state shared by the steps of one Paint call.
type pass struct {
	f        Frame
	view     viewport.View
	layout   Layout
	pal      Palette
	from, to int // buffered window
	window   chartcache.Window
	lo, hi   float64
}

// Paint draws f onto c and returns the layout it used.
func (r *Renderer) Paint(c draw.Canvas, f Frame) Layout {
	start := time.Now()
	defer func() { r.obs.PaintDone(time.Since(start)) }()

	p := &pass{f: f, view: f.View(), layout: ComputeLayout(f), pal: PaletteFor(f.Theme)}
	c.ResetStyle()
	draw.FillRect(c, draw.Rect{W: f.Width, H: f.Height}, p.pal.Background)

	if len(f.Candles) == 0 || !f.Range.Valid() || f.Width <= 0 {
		draw.Label{Text: "No data", X: f.Width/2 - 20, Y: p.layout.Price.H / 2, Color: p.pal.Placeholder, Size: 12}.Paint(c)
		return p.layout
	}

	p.from, p.to = p.view.Buffered()
	if p.from >= p.to {
		r.paintPanels(c, p)
		return p.layout
	}
	buffered := f.Candles[p.from:p.to]
	p.window = chartcache.Window{FirstTS: buffered[0].Time, LastTS: buffered[len(buffered)-1].Time}
	p.lo, p.hi = viewport.PriceRange(buffered)

	r.paintGrid(c, p)
	r.paintCandles(c, p, buffered)
	r.paintVolume(c, p, buffered)
	r.paintOverlays(c, p, buffered)
	r.paintPanels(c, p)
	return p.layout
}

// PaintStats is a snapshot of the renderer cache counters.
func (r *Renderer) PaintStats() map[chartcache.Kind]chartcache.Counts {
	return r.cache.Stats()
}

func (r *Renderer) paintGrid(c draw.Canvas, p *pass) {
	const levels = 5
	area := p.layout.Price
	for i := 0; i < levels; i++ {
		v := p.lo + (p.hi-p.lo)*float64(i)/float64(levels-1)
		y := viewport.Y(v, p.lo, p.hi, area)
		draw.Line(c, area.X, y, area.X+area.W, y, p.pal.Grid, 1, draw.LineSolid)
		draw.Label{Text: formatPrice(v), X: area.X + area.W - 56, Y: y - 2, Color: p.pal.Text}.Paint(c)
	}
}

func (r *Renderer) paintCandles(c draw.Canvas, p *pass, buffered []model.Candle) {
	area := p.layout.Price
	bodyW := math.Max(1, p.view.CandleWidth()*0.7)
	for k := range buffered {
		cd := &buffered[k]
		x := p.view.X(float64(p.from + k))
		if x+bodyW/2 < 0 || x-bodyW/2 > p.f.Width {
			continue
		}
		col := p.pal.Down
		if cd.Bullish() {
			col = p.pal.Up
		}
		col = draw.ColorOr(cd.Color, col)

		draw.Line(c, x, viewport.Y(cd.High, p.lo, p.hi, area), x, viewport.Y(cd.Low, p.lo, p.hi, area), col, 1, draw.LineSolid)

		top := viewport.Y(math.Max(cd.Open, cd.Close), p.lo, p.hi, area)
		bottom := viewport.Y(math.Min(cd.Open, cd.Close), p.lo, p.hi, area)
		draw.FillRect(c, draw.Rect{X: x - bodyW/2, Y: top, W: bodyW, H: math.Max(1, bottom-top)}, col)
	}
}

func (r *Renderer) paintVolume(c draw.Canvas, p *pass, buffered []model.Candle) {
	area := p.layout.Volume
	maxVol := 0.0
	for i := range buffered {
		maxVol = math.Max(maxVol, buffered[i].Volume)
	}
	if maxVol <= 0 || area.H <= 0 {
		return
	}
	barW := math.Max(1, p.view.CandleWidth()*0.7)
	for k := range buffered {
		cd := &buffered[k]
		x := p.view.X(float64(p.from + k))
		if x+barW/2 < 0 || x-barW/2 > p.f.Width {
			continue
		}
		h := cd.Volume / maxVol * area.H
		col := p.pal.Down
		if cd.Bullish() {
			col = p.pal.Up
		}
		draw.FillRect(c, draw.Rect{X: x - barW/2, Y: area.Bottom() - h, W: barW, H: h}, withAlpha(col, 90))
	}
}

// slice resolves the visible part of in.Data through the data cache.
func (r *Renderer) slice(p *pass, in indicator.Instance, buffered []model.Candle) viewport.Slice {
	key := chartcache.DataKey{ID: in.ID, Window: p.window}
	if s, ok := r.cache.Data(key, len(p.f.Candles), in.Revision); ok {
		return s
	}
	s := r.align.Slice(p.f.Candles, buffered, in.Data)
	r.cache.PutData(key, len(p.f.Candles), in.Revision, s)
	return s
}

// lineStyle resolves an instance's color and width for this frame.
func (r *Renderer) lineStyle(p *pass, in indicator.Instance) (drawing.Color, float64) {
	fallback := p.pal.Line
	if def, err := r.reg.Get(in.Kind); err == nil {
		if tc, ok := def.(indicator.ThemedColors); ok {
			fallback = draw.ColorOr(tc.ThemeColor(p.f.Theme), fallback)
		}
	}
	width := in.LineWidth
	if width <= 0 {
		width = 1.5
	}
	return draw.ColorOr(in.Color, fallback), width
}

func (r *Renderer) paintOverlays(c draw.Canvas, p *pass, buffered []model.Candle) {
	area := p.layout.Price
	for _, in := range p.f.Indicators {
		if !in.Visible || in.SeparatePanel {
			continue
		}
		color, width := r.lineStyle(p, in)
		paint := chartcache.Paint{Color: color, Width: width, Style: in.LineStyle, Revision: in.Revision, Dragging: p.f.Dragging}
		key := chartcache.PathKey{ID: in.ID, Window: p.window, Geometry: chartcache.Geometry{
			Top: area.Y, Width: area.W, Height: area.H, Lo: p.lo, Hi: p.hi, Span: p.f.Range.Span(),
		}}

		path, ok := r.cache.Path(key, paint, p.f.Range.Start)
		if !ok {
			s := r.slice(p, in, buffered)
			path = viewport.LinePath(p.view, s.Offset, s.Data, func(v float64) float64 {
				return viewport.Y(v, p.lo, p.hi, area)
			})
			r.cache.PutPath(key, paint, p.f.Range.Start, path)
		}
		path = path.ClipX(area.X, area.X+area.W)

		if p.f.Dragging {
			width = math.Max(1, width*0.75)
		} else {
			glow := draw.Shape{Path: path, Stroke: withAlpha(color, 60), Width: width + 3, Style: in.LineStyle}
			glow.Paint(c)
		}
		line := draw.Shape{Path: path, Stroke: color, Width: width, Style: in.LineStyle}
		line.Paint(c)
	}
}

func (r *Renderer) paintPanels(c draw.Canvas, p *pass) {
	byID := make(map[string]indicator.Instance, len(p.f.Indicators))
	for _, in := range p.f.Indicators {
		byID[in.ID] = in
	}
	for _, slot := range p.layout.Panels {
		r.paintPanel(c, p, slot, byID[slot.ID])
	}
}

func (r *Renderer) paintPanel(c draw.Canvas, p *pass, slot PanelSlot, in indicator.Instance) {
	draw.FillRect(c, slot.Bounds, p.pal.PanelBackground)
	draw.Line(c, slot.Bounds.X, slot.Bounds.Y, slot.Bounds.X+slot.Bounds.W, slot.Bounds.Y, p.pal.PanelBorder, 1, draw.LineSolid)
	r.paintTitle(c, p, slot, in)
	if slot.Collapsed || slot.Plot.H <= 0 {
		return
	}

	def, err := r.reg.Get(in.Kind)
	if err != nil {
		r.placeholder(c, slot, err.Error(), p.pal.Error)
		return
	}
	pr, ok := def.(indicator.PanelRenderer)
	if !ok {
		r.placeholder(c, slot, "no renderer available", p.pal.Placeholder)
		return
	}
	if p.from >= p.to {
		return
	}

	buffered := p.f.Candles[p.from:p.to]
	s := r.slice(p, in, buffered)
	lo, hi := pr.Scale(s.Data)
	for _, lvl := range pr.ReferenceLevels() {
		y := viewport.Y(lvl, lo, hi, slot.Plot)
		draw.Line(c, slot.Plot.X, y, slot.Plot.X+slot.Plot.W, y, p.pal.Grid, 1, draw.LineDashed)
		draw.Label{Text: formatPrice(lvl), X: slot.Plot.X + slot.Plot.W - 30, Y: y - 2, Color: p.pal.Text}.Paint(c)
	}

	color, width := r.lineStyle(p, in)
	paint := chartcache.Paint{Color: color, Width: width, Style: in.LineStyle, Revision: in.Revision, Dragging: p.f.Dragging}
	key := chartcache.PathKey{ID: in.ID, Window: p.window, Geometry: chartcache.Geometry{
		Top: slot.Plot.Y, Width: slot.Plot.W, Height: slot.Plot.H, Lo: lo, Hi: hi, Span: p.f.Range.Span(),
	}}
	if layer, ok := r.cache.Panel(key, paint, p.f.Range.Start); ok {
		layer = layer.ClipX(slot.Plot.X, slot.Plot.X+slot.Plot.W)
		layer.Paint(c)
		return
	}

	if p.f.Dragging {
		width = math.Max(1, width*0.75)
	}
	layer, err := renderPanel(pr, indicator.Panel{
		Area:     slot.Plot,
		View:     p.view,
		Data:     s.Data,
		Offset:   s.Offset,
		Lo:       lo,
		Hi:       hi,
		Color:    color,
		Width:    width,
		Style:    in.LineStyle,
		Theme:    p.f.Theme,
		Dragging: p.f.Dragging,
	})
	if err != nil {
		r.obs.PanelFailed(in.Kind)
		r.log.Error("panel render failed",
			slog.String("indicator_id", in.ID),
			slog.String("type", in.Kind.String()),
			slog.Any("error", err),
		)
		r.placeholder(c, slot, "render error: "+err.Error(), p.pal.Error)
		return
	}
	r.cache.PutPanel(key, paint, p.f.Range.Start, layer)
	visible := layer.ClipX(slot.Plot.X, slot.Plot.X+slot.Plot.W)
	visible.Paint(c)
}

func (r *Renderer) paintTitle(c draw.Canvas, p *pass, slot PanelSlot, in indicator.Instance) {
	draw.FillRect(c, slot.Title, p.pal.TitleBar)
	draw.Label{Text: Title(in), X: slot.Title.X + 6, Y: slot.Title.Y + 14, Color: p.pal.Text, Size: 10}.Paint(c)

	btn := "-"
	if slot.Collapsed {
		btn = "+"
	}
	cb, xb := slot.Collapse(), slot.Close()
	draw.Label{Text: btn, X: cb.X + 7, Y: cb.Y + 14, Color: p.pal.Text, Size: 10}.Paint(c)
	draw.Label{Text: "x", X: xb.X + 7, Y: xb.Y + 14, Color: p.pal.Text, Size: 10}.Paint(c)
}

func (r *Renderer) placeholder(c draw.Canvas, slot PanelSlot, msg string, col drawing.Color) {
	draw.Label{Text: msg, X: slot.Plot.X + 8, Y: slot.Plot.Y + slot.Plot.H/2, Color: col, Size: 10}.Paint(c)
}

// renderPanel turns a panic inside a panel renderer into an error.
func renderPanel(pr indicator.PanelRenderer, panel indicator.Panel) (layer draw.Layer, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return pr.RenderPanel(panel)
}

// Title is the text shown in a panel title bar, e.g. "RSI 14".
func Title(in indicator.Instance) string {
	if period, err := in.Params.Int("period"); err == nil {
		return in.Name + " " + strconv.Itoa(period)
	}
	return in.Name
}

func formatPrice(v float64) string {
	switch {
	case math.Abs(v) >= 1000:
		return strconv.FormatFloat(v, 'f', 0, 64)
	case math.Abs(v) >= 1:
		return strconv.FormatFloat(v, 'f', 2, 64)
	default:
		return strconv.FormatFloat(v, 'f', 4, 64)
	}
}

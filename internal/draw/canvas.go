// Package draw holds the drawing primitives shared by the indicator panel
// renderers and the chart renderer: a minimal 2D canvas contract, recorded
// vector paths, line styles and color parsing.
//
// Canvas is a strict subset of go-chart's chart.Renderer, so the PNG and SVG
// renderers from github.com/wcharczuk/go-chart/v2 can be painted on directly.
package draw

import "github.com/wcharczuk/go-chart/v2/drawing"

// Canvas is the 2D drawing surface the chart paints on.
type Canvas interface {
	ResetStyle()
	SetStrokeColor(c drawing.Color)
	SetFillColor(c drawing.Color)
	SetStrokeWidth(width float64)
	SetStrokeDashArray(dashArray []float64)
	MoveTo(x, y int)
	LineTo(x, y int)
	Close()
	Stroke()
	Fill()
	FillStroke()
	SetFontColor(c drawing.Color)
	SetFontSize(size float64)
	Text(body string, x, y int)
}

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether (x, y) lies inside the rectangle (edges inclusive).
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Bottom returns the y coordinate of the lower edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// FillRect paints a filled rectangle with no outline.
func FillRect(c Canvas, r Rect, fill drawing.Color) {
	c.SetFillColor(fill)
	c.SetStrokeColor(drawing.ColorTransparent)
	c.SetStrokeWidth(0)
	c.MoveTo(px(r.X), px(r.Y))
	c.LineTo(px(r.X+r.W), px(r.Y))
	c.LineTo(px(r.X+r.W), px(r.Y+r.H))
	c.LineTo(px(r.X), px(r.Y+r.H))
	c.Close()
	c.Fill()
}

// Line strokes a single straight segment.
func Line(c Canvas, x1, y1, x2, y2 float64, color drawing.Color, width float64, style LineStyle) {
	c.SetStrokeColor(color)
	c.SetStrokeWidth(width)
	c.SetStrokeDashArray(style.DashArray(width))
	c.MoveTo(px(x1), px(y1))
	c.LineTo(px(x2), px(y2))
	c.Stroke()
	c.SetStrokeDashArray(nil)
}

// Label is a piece of text positioned in pixel space.
type Label struct {
	Text  string
	X, Y  float64
	Color drawing.Color
	Size  float64
}

// Paint draws the label.
func (l Label) Paint(c Canvas) {
	size := l.Size
	if size <= 0 {
		size = 9
	}
	c.SetFontColor(l.Color)
	c.SetFontSize(size)
	c.Text(l.Text, px(l.X), px(l.Y))
}

func px(v float64) int {
	if v >= 0 {
		return int(v + 0.5)
	}
	return int(v - 0.5)
}

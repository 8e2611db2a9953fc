package draw

import "github.com/wcharczuk/go-chart/v2/drawing"

// Point is a pixel-space coordinate.
type Point struct {
	X, Y float64
}

// Path is a recorded vector path made of one or more polylines. It can be
// built once and replayed onto any canvas, which is what the path caches store.
type Path struct {
	subpaths [][]Point
	closed   []bool
}

// MoveTo starts a new polyline at (x, y).
func (p *Path) MoveTo(x, y float64) {
	p.subpaths = append(p.subpaths, []Point{{X: x, Y: y}})
	p.closed = append(p.closed, false)
}

// LineTo extends the current polyline. Without a current polyline it behaves
// like MoveTo.
func (p *Path) LineTo(x, y float64) {
	if len(p.subpaths) == 0 {
		p.MoveTo(x, y)
		return
	}
	last := len(p.subpaths) - 1
	p.subpaths[last] = append(p.subpaths[last], Point{X: x, Y: y})
}

// ClosePath closes the current polyline back to its first point.
func (p *Path) ClosePath() {
	if len(p.closed) > 0 {
		p.closed[len(p.closed)-1] = true
	}
}

// Points returns the total number of recorded points.
func (p *Path) Points() int {
	n := 0
	for _, sp := range p.subpaths {
		n += len(sp)
	}
	return n
}

// Subpaths returns the number of polylines.
func (p *Path) Subpaths() int { return len(p.subpaths) }

// Empty reports whether the path has nothing to draw.
func (p *Path) Empty() bool { return p.Points() == 0 }

// Translate returns a copy of p moved by (dx, dy). p is not modified.
func (p *Path) Translate(dx, dy float64) Path {
	out := Path{
		subpaths: make([][]Point, len(p.subpaths)),
		closed:   append([]bool(nil), p.closed...),
	}
	for i, sp := range p.subpaths {
		moved := make([]Point, len(sp))
		for j, pt := range sp {
			moved[j] = Point{X: pt.X + dx, Y: pt.Y + dy}
		}
		out.subpaths[i] = moved
	}
	return out
}

// clipEpsilon absorbs float error when a translated point lands on an edge.
const clipEpsilon = 1e-6

// ClipX returns a copy of p keeping only points with lo <= x <= hi. A dropped
// point breaks its polyline; a polyline that loses points is no longer closed.
func (p *Path) ClipX(lo, hi float64) Path {
	var out Path
	for i, sp := range p.subpaths {
		var cur []Point
		lost := false
		flush := func() {
			if len(cur) > 0 {
				out.subpaths = append(out.subpaths, cur)
				out.closed = append(out.closed, p.closed[i] && !lost)
			}
			cur = nil
		}
		for _, pt := range sp {
			if pt.X < lo-clipEpsilon || pt.X > hi+clipEpsilon {
				lost = true
				flush()
				continue
			}
			cur = append(cur, pt)
		}
		flush()
	}
	return out
}

// Replay issues the recorded MoveTo/LineTo/Close calls against c.
func (p *Path) Replay(c Canvas) {
	for i, sp := range p.subpaths {
		if len(sp) == 0 {
			continue
		}
		c.MoveTo(px(sp[0].X), px(sp[0].Y))
		for _, pt := range sp[1:] {
			c.LineTo(px(pt.X), px(pt.Y))
		}
		if p.closed[i] {
			c.Close()
		}
	}
}

// RectPath returns a closed rectangular path.
func RectPath(r Rect) Path {
	var p Path
	p.MoveTo(r.X, r.Y)
	p.LineTo(r.X+r.W, r.Y)
	p.LineTo(r.X+r.W, r.Y+r.H)
	p.LineTo(r.X, r.Y+r.H)
	p.ClosePath()
	return p
}

// Shape is a path together with the style it is painted with.
type Shape struct {
	Path   Path
	Stroke drawing.Color
	Fill   drawing.Color
	Width  float64 // 0 disables the stroke
	Style  LineStyle
	Filled bool
	// Scrolls marks data-bound geometry that moves with the visible range;
	// fixed decorations such as zone fills leave it false.
	Scrolls bool
}

// Paint fills and/or strokes the shape on c.
func (s *Shape) Paint(c Canvas) {
	if s.Path.Empty() {
		return
	}
	stroked := s.Width > 0
	if s.Filled {
		c.SetFillColor(s.Fill)
	}
	if stroked {
		c.SetStrokeColor(s.Stroke)
		c.SetStrokeWidth(s.Width)
		c.SetStrokeDashArray(s.Style.DashArray(s.Width))
	} else {
		c.SetStrokeColor(drawing.ColorTransparent)
		c.SetStrokeWidth(0)
	}
	s.Path.Replay(c)
	switch {
	case s.Filled && stroked:
		c.FillStroke()
	case s.Filled:
		c.Fill()
	default:
		c.Stroke()
	}
	if stroked {
		c.SetStrokeDashArray(nil)
	}
}

// Layer is a finished set of shapes and labels, painted in order. Panel
// renderers produce layers so a full panel can be cached and replayed.
type Layer struct {
	Shapes []Shape
	Labels []Label
}

// Paint draws every shape, then every label.
func (l *Layer) Paint(c Canvas) {
	for i := range l.Shapes {
		l.Shapes[i].Paint(c)
	}
	for _, lb := range l.Labels {
		lb.Paint(c)
	}
}

// Shift returns a copy of l with every Scrolls shape moved dx pixels
// horizontally. Other shapes and labels keep their position.
func (l *Layer) Shift(dx float64) Layer {
	out := Layer{Shapes: make([]Shape, len(l.Shapes)), Labels: l.Labels}
	for i, s := range l.Shapes {
		if s.Scrolls && dx != 0 {
			s.Path = s.Path.Translate(dx, 0)
		}
		out.Shapes[i] = s
	}
	return out
}

// ClipX returns a copy of l with every Scrolls shape clipped to [lo, hi].
func (l *Layer) ClipX(lo, hi float64) Layer {
	out := Layer{Shapes: make([]Shape, len(l.Shapes)), Labels: l.Labels}
	for i, s := range l.Shapes {
		if s.Scrolls {
			s.Path = s.Path.ClipX(lo, hi)
		}
		out.Shapes[i] = s
	}
	return out
}

// Package drawtest provides a recording draw.Canvas for tests.
package drawtest

import (
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Op is one recorded canvas call.
type Op struct {
	Name  string
	X, Y  int
	Value float64
	Color drawing.Color
	Dash  []float64
	Text  string
}

// Recorder implements draw.Canvas by appending every call to Ops.
type Recorder struct {
	Ops []Op
}

func (r *Recorder) add(op Op) { r.Ops = append(r.Ops, op) }

func (r *Recorder) ResetStyle()                    { r.add(Op{Name: "ResetStyle"}) }
func (r *Recorder) SetStrokeColor(c drawing.Color) { r.add(Op{Name: "SetStrokeColor", Color: c}) }
func (r *Recorder) SetFillColor(c drawing.Color)   { r.add(Op{Name: "SetFillColor", Color: c}) }
func (r *Recorder) SetStrokeWidth(w float64)       { r.add(Op{Name: "SetStrokeWidth", Value: w}) }
func (r *Recorder) SetStrokeDashArray(d []float64) { r.add(Op{Name: "SetStrokeDashArray", Dash: d}) }
func (r *Recorder) MoveTo(x, y int)                { r.add(Op{Name: "MoveTo", X: x, Y: y}) }
func (r *Recorder) LineTo(x, y int)                { r.add(Op{Name: "LineTo", X: x, Y: y}) }
func (r *Recorder) Close()                         { r.add(Op{Name: "Close"}) }
func (r *Recorder) Stroke()                        { r.add(Op{Name: "Stroke"}) }
func (r *Recorder) Fill()                          { r.add(Op{Name: "Fill"}) }
func (r *Recorder) FillStroke()                    { r.add(Op{Name: "FillStroke"}) }
func (r *Recorder) SetFontColor(c drawing.Color)   { r.add(Op{Name: "SetFontColor", Color: c}) }
func (r *Recorder) SetFontSize(size float64)       { r.add(Op{Name: "SetFontSize", Value: size}) }
func (r *Recorder) Text(body string, x, y int)     { r.add(Op{Name: "Text", X: x, Y: y, Text: body}) }

// Count returns how many calls named name were recorded.
func (r *Recorder) Count(name string) int {
	n := 0
	for _, op := range r.Ops {
		if op.Name == name {
			n++
		}
	}
	return n
}

// Texts returns every string passed to Text, in order.
func (r *Recorder) Texts() []string {
	var out []string
	for _, op := range r.Ops {
		if op.Name == "Text" {
			out = append(out, op.Text)
		}
	}
	return out
}

// HasText reports whether any Text call contained sub.
func (r *Recorder) HasText(sub string) bool {
	for _, t := range r.Texts() {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}

// Index returns the position of the first Text op containing sub, or -1.
func (r *Recorder) Index(sub string) int {
	for i, op := range r.Ops {
		if op.Name == "Text" && strings.Contains(op.Text, sub) {
			return i
		}
	}
	return -1
}

// Reset clears recorded ops.
func (r *Recorder) Reset() { r.Ops = r.Ops[:0] }

// String renders the op log, handy in failure messages.
func (r *Recorder) String() string {
	var b strings.Builder
	for _, op := range r.Ops {
		fmt.Fprintf(&b, "%s(%d,%d,%v,%q) ", op.Name, op.X, op.Y, op.Value, op.Text)
	}
	return b.String()
}

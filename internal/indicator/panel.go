package indicator

import (
	"github.com/wcharczuk/go-chart/v2/drawing"

	"advchart/internal/draw"
	"advchart/internal/viewport"
)

// Panel is what a PanelRenderer receives: the plot area of its stacked pane,
// the chart's shared x geometry, and the visible slice of its data.
// Area spans the same x extent as the price pane, so View.X applies as is.
type Panel struct {
	Area   draw.Rect     // plot area below the title bar
	View   viewport.View // same View the price pane uses
	Data   []float64     // visible (buffered) slice of the instance's series
	Offset int           // index of Data[0] in the full history
	Lo, Hi float64       // value scale from Scale()

	Color    drawing.Color
	Width    float64
	Style    draw.LineStyle
	Theme    draw.Theme
	Dragging bool
}

// YFor maps a value into the panel area.
func (p Panel) YFor(v float64) float64 {
	return viewport.Y(v, p.Lo, p.Hi, p.Area)
}

// LineShape builds the instance's main line through Data. The shape scrolls
// with the range, so a cached panel can be shifted instead of rebuilt.
func (p Panel) LineShape() draw.Shape {
	return draw.Shape{
		Path:    viewport.LinePath(p.View, p.Offset, p.Data, p.YFor),
		Stroke:  p.Color,
		Width:   p.Width,
		Style:   p.Style,
		Scrolls: true,
	}
}

package indicator

import (
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"advchart/internal/draw"
	"advchart/internal/model"
)

// movingAverage is the shared blueprint of the overlay averages.
type movingAverage struct {
	kind     Kind
	name     string
	category Category
	period   int
	dark     string
	light    string
	calc     func([]model.Candle, int, Source) []float64
}

func (m movingAverage) Kind() Kind         { return m.kind }
func (m movingAverage) Category() Category { return m.category }

func (m movingAverage) Defaults() Instance {
	return Instance{
		Kind:      m.kind,
		Name:      m.name,
		Params:    Params{"period": m.period, "source": string(SourceClose)},
		Visible:   true,
		LineStyle: draw.LineSolid,
		LineWidth: 1.5,
	}
}

func (m movingAverage) Settings() []ParamSpec {
	return []ParamSpec{periodSpec(m.period, 500), sourceSpec()}
}

func (m movingAverage) Calculate(candles []model.Candle, params Params) ([]float64, error) {
	period, src, err := periodAndSource(params)
	if err != nil {
		return nil, err
	}
	return m.calc(candles, period, src), nil
}

func (m movingAverage) ThemeColor(theme draw.Theme) string {
	if theme == draw.ThemeLight {
		return m.light
	}
	return m.dark
}

var (
	smaDefinition = movingAverage{kind: KindSMA, name: "SMA", category: CategoryPopular, period: 20,
		dark: "#f5a623", light: "#d97706", calc: CalculateSMA}
	emaDefinition = movingAverage{kind: KindEMA, name: "EMA", category: CategoryTrend, period: 9,
		dark: "#4fc3f7", light: "#0277bd", calc: CalculateEMA}
	smmaDefinition = movingAverage{kind: KindSMMA, name: "SMMA", category: CategoryTrend, period: 14,
		dark: "#ce93d8", light: "#7b1fa2", calc: CalculateSMMA}
)

// RSI reference levels.
const (
	RSIOverbought = 70.0
	RSIOversold   = 30.0
)

type rsiDefinition struct{}

func (rsiDefinition) Kind() Kind         { return KindRSI }
func (rsiDefinition) Category() Category { return CategoryPopular }

func (rsiDefinition) Defaults() Instance {
	return Instance{
		Kind:          KindRSI,
		Name:          "RSI",
		Params:        Params{"period": 14, "source": string(SourceClose)},
		Visible:       true,
		LineStyle:     draw.LineSolid,
		LineWidth:     1.5,
		SeparatePanel: true,
	}
}

func (rsiDefinition) Settings() []ParamSpec {
	return []ParamSpec{periodSpec(14, 100), sourceSpec()}
}

func (rsiDefinition) Calculate(candles []model.Candle, params Params) ([]float64, error) {
	period, src, err := periodAndSource(params)
	if err != nil {
		return nil, err
	}
	return CalculateRSI(candles, period, src), nil
}

func (rsiDefinition) ThemeColor(theme draw.Theme) string {
	if theme == draw.ThemeLight {
		return "#6d28d9"
	}
	return "#b39ddb"
}

// Scale is fixed at 0–100 regardless of the visible values.
func (rsiDefinition) Scale([]float64) (float64, float64) { return 0, 100 }

func (rsiDefinition) ReferenceLevels() []float64 { return []float64{RSIOversold, RSIOverbought} }

// RenderPanel shades the overbought and oversold zones, draws the dashed
// center line at 50 and the RSI line itself.
func (rsiDefinition) RenderPanel(p Panel) (draw.Layer, error) {
	overbought := drawing.Color{R: 239, G: 83, B: 80, A: 28}
	oversold := drawing.Color{R: 38, G: 166, B: 154, A: 28}
	mid := drawing.Color{R: 120, G: 123, B: 134, A: 160}

	zone := func(from, to float64, c drawing.Color) draw.Shape {
		top, bottom := p.YFor(to), p.YFor(from)
		r := draw.Rect{X: p.Area.X, Y: top, W: p.Area.W, H: math.Abs(bottom - top)}
		return draw.Shape{Path: draw.RectPath(r), Fill: c, Filled: true}
	}

	var center draw.Path
	y50 := p.YFor(RSINeutral)
	center.MoveTo(p.Area.X, y50)
	center.LineTo(p.Area.X+p.Area.W, y50)

	line := p.LineShape()
	return draw.Layer{Shapes: []draw.Shape{
		zone(RSIOverbought, 100, overbought),
		zone(0, RSIOversold, oversold),
		{Path: center, Stroke: mid, Width: 1, Style: draw.LineDashed},
		line,
	}}, nil
}

package api

import (
	"math"

	"advchart/internal/indicator"
	"advchart/internal/render"
)

// IndicatorOut is an indicator as the REST and websocket APIs return it:
// the instance without its series, plus the newest calculated value.
type IndicatorOut struct {
	indicator.Instance
	Title string   `json:"title"`
	Last  *float64 `json:"last,omitempty"`
}

func toIndicatorOut(in indicator.Instance) IndicatorOut {
	out := IndicatorOut{Instance: in, Title: render.Title(in)}
	for i := len(in.Data) - 1; i >= 0; i-- {
		if v := in.Data[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			out.Last = &v
			break
		}
	}
	out.Data = nil
	return out
}

func toIndicatorList(list []indicator.Instance) []IndicatorOut {
	out := make([]IndicatorOut, len(list))
	for i, in := range list {
		out[i] = toIndicatorOut(in)
	}
	return out
}

// AddRequest is the body of POST /api/v1/indicators.
type AddRequest struct {
	Type   string           `json:"type"`
	Params indicator.Params `json:"params,omitempty"`
}

// clientMsg is a websocket message from the browser.
type clientMsg struct {
	Type   string  `json:"type"` // viewport|drag_start|drag_move|drag_end|zoom|click|theme
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Factor float64 `json:"factor"`
	Theme  string  `json:"theme"`
}

type indicatorsMsg struct {
	Type       string         `json:"type"` // "indicators"
	Indicators []IndicatorOut `json:"indicators"`
}

type hitMsg struct {
	Type string     `json:"type"` // "hit"
	Hit  render.Hit `json:"hit"`
}

type errorMsg struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

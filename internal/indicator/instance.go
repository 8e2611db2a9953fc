package indicator

import (
	"advchart/internal/draw"
)

// Instance is one configured occurrence of an indicator type on a chart.
//
// Instances held by a Manager are never mutated in place: every change builds
// a new value and replaces the manager's list, so a snapshot taken for a paint
// stays consistent.
type Instance struct {
	ID            string         `json:"id" yaml:"id,omitempty"`
	Kind          Kind           `json:"type" yaml:"type"`
	Name          string         `json:"name" yaml:"name,omitempty"`
	Params        Params         `json:"params" yaml:"params,omitempty"`
	Visible       bool           `json:"visible" yaml:"visible"`
	Color         string         `json:"color,omitempty" yaml:"color,omitempty"`
	LineStyle     draw.LineStyle `json:"line_style" yaml:"line_style,omitempty"`
	LineWidth     float64        `json:"line_width" yaml:"line_width,omitempty"`
	SeparatePanel bool           `json:"separate_panel" yaml:"separate_panel,omitempty"`
	Collapsed     bool           `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`

	// Data is the last calculated series, one value per candle. It is
	// replaced, never written to, after assignment.
	Data []float64 `json:"-" yaml:"-"`
	// Revision increments on every successful recalculation.
	Revision uint64 `json:"revision" yaml:"-"`
}

// Clone returns a copy whose Params can be mutated independently.
func (in Instance) Clone() Instance {
	out := in
	out.Params = in.Params.Clone()
	return out
}

// Patch is a partial update of an instance. Nil fields are left untouched;
// Params are merged key by key.
type Patch struct {
	Name          *string         `json:"name,omitempty"`
	Params        Params          `json:"params,omitempty"`
	Visible       *bool           `json:"visible,omitempty"`
	Color         *string         `json:"color,omitempty"`
	LineStyle     *draw.LineStyle `json:"line_style,omitempty"`
	LineWidth     *float64        `json:"line_width,omitempty"`
	SeparatePanel *bool           `json:"separate_panel,omitempty"`
	Collapsed     *bool           `json:"collapsed,omitempty"`
}

// Apply returns in with the patch applied. in is not modified.
func (p Patch) Apply(in Instance) Instance {
	out := in.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if len(p.Params) > 0 {
		out.Params = out.Params.Merge(p.Params)
	}
	if p.Visible != nil {
		out.Visible = *p.Visible
	}
	if p.Color != nil {
		out.Color = *p.Color
	}
	if p.LineStyle != nil {
		out.LineStyle = *p.LineStyle
	}
	if p.LineWidth != nil {
		out.LineWidth = *p.LineWidth
	}
	if p.SeparatePanel != nil {
		out.SeparatePanel = *p.SeparatePanel
	}
	if p.Collapsed != nil {
		out.Collapsed = *p.Collapsed
	}
	return out
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"advchart/internal/draw"
	"advchart/internal/indicator"
)

// Preset is one indicator of the default layout. Unset fields keep the
// indicator type's defaults.
type Preset struct {
	Type          string         `yaml:"type"`
	Name          string         `yaml:"name,omitempty"`
	Params        map[string]any `yaml:"params,omitempty"`
	Color         string         `yaml:"color,omitempty"`
	LineStyle     string         `yaml:"line_style,omitempty"`
	LineWidth     float64        `yaml:"line_width,omitempty"`
	Visible       *bool          `yaml:"visible,omitempty"`
	SeparatePanel *bool          `yaml:"separate_panel,omitempty"`
}

// Presets is the default indicator layout of a chart with no saved layout.
type Presets struct {
	Indicators []Preset `yaml:"indicators"`
}

// DefaultPresets is used when no presets file is configured: SMA 20 on the
// price pane and RSI 14 below it.
func DefaultPresets() *Presets {
	return &Presets{Indicators: []Preset{{Type: "sma"}, {Type: "rsi"}}}
}

// LoadPresets reads and validates a presets file.
func LoadPresets(path string, reg *indicator.Registry) (*Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file '%s': %w", path, err)
	}

	var p Presets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse presets from YAML: %w", err)
	}

	if err := p.Validate(reg); err != nil {
		return nil, fmt.Errorf("presets validation failed: %w", err)
	}
	return &p, nil
}

// Validate checks every preset resolves to a known type with usable params.
func (p *Presets) Validate(reg *indicator.Registry) error {
	_, err := p.Instances(reg)
	return err
}

// Instances builds indicator instances from the presets, each starting from
// its type's defaults.
func (p *Presets) Instances(reg *indicator.Registry) ([]indicator.Instance, error) {
	out := make([]indicator.Instance, 0, len(p.Indicators))
	for i, pr := range p.Indicators {
		kind, err := indicator.ParseKind(pr.Type)
		if err != nil {
			return nil, fmt.Errorf("preset %d: %w", i, err)
		}
		patch, err := pr.patch()
		if err != nil {
			return nil, fmt.Errorf("preset %d (%s): %w", i, pr.Type, err)
		}
		in, err := reg.Create(kind, patch)
		if err != nil {
			return nil, fmt.Errorf("preset %d: %w", i, err)
		}
		def, _ := reg.Get(kind)
		if _, err := def.Calculate(nil, in.Params); err != nil {
			return nil, fmt.Errorf("preset %d (%s): %w", i, pr.Type, err)
		}
		out = append(out, in)
	}
	return out, nil
}

func (pr Preset) patch() (indicator.Patch, error) {
	var patch indicator.Patch
	if pr.Name != "" {
		patch.Name = &pr.Name
	}
	if len(pr.Params) > 0 {
		patch.Params = indicator.Params(pr.Params)
	}
	if pr.Color != "" {
		if _, err := draw.ParseColor(pr.Color); err != nil {
			return patch, err
		}
		patch.Color = &pr.Color
	}
	if pr.LineStyle != "" {
		style, err := draw.ParseLineStyle(pr.LineStyle)
		if err != nil {
			return patch, err
		}
		patch.LineStyle = &style
	}
	if pr.LineWidth > 0 {
		patch.LineWidth = &pr.LineWidth
	}
	patch.Visible = pr.Visible
	patch.SeparatePanel = pr.SeparatePanel
	return patch, nil
}

package draw

import (
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// LineStyle selects the dash pattern of a stroked line.
type LineStyle int

const (
	LineSolid LineStyle = iota
	LineDashed
	LineDotted
)

// String returns the lower-case name used in JSON, YAML and cache keys.
func (s LineStyle) String() string {
	switch s {
	case LineDashed:
		return "dashed"
	case LineDotted:
		return "dotted"
	default:
		return "solid"
	}
}

// ParseLineStyle parses "solid", "dashed" or "dotted".
func ParseLineStyle(v string) (LineStyle, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "solid":
		return LineSolid, nil
	case "dashed":
		return LineDashed, nil
	case "dotted":
		return LineDotted, nil
	}
	return LineSolid, fmt.Errorf("unknown line style %q", v)
}

// DashArray returns the dash pattern for a line of the given width,
// or nil for solid lines.
func (s LineStyle) DashArray(width float64) []float64 {
	if width < 1 {
		width = 1
	}
	switch s {
	case LineDashed:
		return []float64{5 * width, 5 * width}
	case LineDotted:
		return []float64{width, 3 * width}
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s LineStyle) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *LineStyle) UnmarshalText(b []byte) error {
	v, err := ParseLineStyle(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseColor parses "#rgb" or "#rrggbb" (leading '#' optional).
func ParseColor(hex string) (drawing.Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 3 && len(h) != 6 {
		return drawing.Color{}, fmt.Errorf("invalid color %q", hex)
	}
	for _, r := range h {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return drawing.Color{}, fmt.Errorf("invalid color %q", hex)
		}
	}
	return drawing.ColorFromHex(h), nil
}

// ColorOr parses hex and returns fallback when it is empty or malformed.
func ColorOr(hex string, fallback drawing.Color) drawing.Color {
	c, err := ParseColor(hex)
	if err != nil {
		return fallback
	}
	return c
}

package render

import (
	"github.com/wcharczuk/go-chart/v2/drawing"

	"advchart/internal/draw"
)

// Palette is the set of colors one theme paints with.
type Palette struct {
	Background      drawing.Color
	Grid            drawing.Color
	Text            drawing.Color
	Up              drawing.Color
	Down            drawing.Color
	PanelBackground drawing.Color
	PanelBorder     drawing.Color
	TitleBar        drawing.Color
	Placeholder     drawing.Color
	Error           drawing.Color
	Line            drawing.Color // fallback indicator color
}

var (
	darkPalette = Palette{
		Background:      drawing.ColorFromHex("131722"),
		Grid:            drawing.Color{R: 42, G: 46, B: 57, A: 255},
		Text:            drawing.ColorFromHex("b2b5be"),
		Up:              drawing.ColorFromHex("26a69a"),
		Down:            drawing.ColorFromHex("ef5350"),
		PanelBackground: drawing.ColorFromHex("161a25"),
		PanelBorder:     drawing.ColorFromHex("2a2e39"),
		TitleBar:        drawing.ColorFromHex("1e222d"),
		Placeholder:     drawing.ColorFromHex("787b86"),
		Error:           drawing.ColorFromHex("ff6b6b"),
		Line:            drawing.ColorFromHex("2962ff"),
	}
	lightPalette = Palette{
		Background:      drawing.ColorFromHex("ffffff"),
		Grid:            drawing.Color{R: 240, G: 243, B: 250, A: 255},
		Text:            drawing.ColorFromHex("131722"),
		Up:              drawing.ColorFromHex("089981"),
		Down:            drawing.ColorFromHex("f23645"),
		PanelBackground: drawing.ColorFromHex("fafbfd"),
		PanelBorder:     drawing.ColorFromHex("e0e3eb"),
		TitleBar:        drawing.ColorFromHex("f0f3fa"),
		Placeholder:     drawing.ColorFromHex("9598a1"),
		Error:           drawing.ColorFromHex("d32f2f"),
		Line:            drawing.ColorFromHex("2962ff"),
	}
)

// PaletteFor returns the palette of theme.
func PaletteFor(theme draw.Theme) Palette {
	if theme == draw.ThemeLight {
		return lightPalette
	}
	return darkPalette
}

// withAlpha returns c with its alpha channel replaced.
func withAlpha(c drawing.Color, a uint8) drawing.Color {
	c.A = a
	return c
}

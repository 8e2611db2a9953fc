package render

import (
	"advchart/internal/draw"
	"advchart/internal/indicator"
)

// Layout constants in pixels.
const (
	PanelHeight     = 120.0
	CollapsedHeight = 24.0
	TitleBarHeight  = 20.0
	MinMainHeight   = 120.0
	// VolumeRatio is the share of the main area given to the volume pane.
	VolumeRatio = 0.15

	buttonWidth = 20.0
)

// PanelSlot is where one separate-panel indicator is stacked.
type PanelSlot struct {
	ID        string
	Kind      indicator.Kind
	Bounds    draw.Rect // whole panel
	Title     draw.Rect // title bar
	Plot      draw.Rect // below the title bar; zero height when collapsed
	Collapsed bool
}

// Collapse is the collapse/expand button inside the title bar.
func (s PanelSlot) Collapse() draw.Rect {
	return draw.Rect{X: s.Title.X + s.Title.W - 2*buttonWidth, Y: s.Title.Y, W: buttonWidth, H: s.Title.H}
}

// Close is the hide button at the right end of the title bar.
func (s PanelSlot) Close() draw.Rect {
	return draw.Rect{X: s.Title.X + s.Title.W - buttonWidth, Y: s.Title.Y, W: buttonWidth, H: s.Title.H}
}

// Layout is the vertical split of a frame.
type Layout struct {
	Price  draw.Rect
	Volume draw.Rect
	Panels []PanelSlot
}

// ComputeLayout stacks the visible separate-panel indicators below the price
// and volume panes, in list order. Paint and HitTest share it so clicks land
// on what was drawn.
func ComputeLayout(f Frame) Layout {
	var stacked []indicator.Instance
	total := 0.0
	for _, in := range f.Indicators {
		if !in.Visible || !in.SeparatePanel {
			continue
		}
		stacked = append(stacked, in)
		total += panelHeight(in)
	}

	main := f.Height - total
	if main < MinMainHeight {
		main = MinMainHeight
	}
	volH := main * VolumeRatio
	l := Layout{
		Price:  draw.Rect{X: 0, Y: 0, W: f.Width, H: main - volH},
		Volume: draw.Rect{X: 0, Y: main - volH, W: f.Width, H: volH},
	}

	y := main
	for _, in := range stacked {
		h := panelHeight(in)
		slot := PanelSlot{
			ID:        in.ID,
			Kind:      in.Kind,
			Bounds:    draw.Rect{X: 0, Y: y, W: f.Width, H: h},
			Title:     draw.Rect{X: 0, Y: y, W: f.Width, H: TitleBarHeight},
			Plot:      draw.Rect{X: 0, Y: y + TitleBarHeight, W: f.Width, H: h - TitleBarHeight},
			Collapsed: in.Collapsed,
		}
		if in.Collapsed {
			slot.Plot.H = 0
		}
		l.Panels = append(l.Panels, slot)
		y += h
	}
	return l
}

func panelHeight(in indicator.Instance) float64 {
	if in.Collapsed {
		return CollapsedHeight
	}
	return PanelHeight
}

// HitTarget says which part of a panel title bar was hit.
type HitTarget string

const (
	HitTitle    HitTarget = "title"
	HitCollapse HitTarget = "collapse"
	HitClose    HitTarget = "close"
)

// Hit is the result of a successful HitTest.
type Hit struct {
	ID     string         `json:"id"`
	Kind   indicator.Kind `json:"type"`
	Target HitTarget      `json:"target"`
}

// HitTest reports which panel title bar, if any, contains (x, y). Panels are
// checked in the same order they are drawn.
func HitTest(f Frame, x, y float64) (Hit, bool) {
	for _, s := range ComputeLayout(f).Panels {
		if !s.Title.Contains(x, y) {
			continue
		}
		h := Hit{ID: s.ID, Kind: s.Kind, Target: HitTitle}
		switch {
		case s.Close().Contains(x, y):
			h.Target = HitClose
		case s.Collapse().Contains(x, y):
			h.Target = HitCollapse
		}
		return h, true
	}
	return Hit{}, false
}

// Package session binds the charting core to one live instrument: the candle
// history, its indicator manager, renderer and caches, plus the per-client
// viewport state driven by pointer gestures.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"advchart/internal/chartcache"
	"advchart/internal/indicator"
	"advchart/internal/model"
	"advchart/internal/render"
)

// ErrNotFound is returned for an unknown indicator id.
var ErrNotFound = errors.New("indicator not found")

// ErrFrameSize is returned when a frame cannot be rasterized at the
// requested pixel size.
var ErrFrameSize = errors.New("frame size out of range")

// LayoutStore persists a chart's indicator list.
type LayoutStore interface {
	Load(ctx context.Context, key string) ([]indicator.Instance, error)
	Save(ctx context.Context, key string, list []indicator.Instance) error
}

// Config configures a Chart.
type Config struct {
	Exchange string
	Token    string
	TF       int // seconds

	Debounce time.Duration
	Cache    chartcache.Options

	// Store is optional; without it layouts live in memory only.
	Store LayoutStore
	// Presets is the layout used when the store has none.
	Presets []indicator.Instance

	Logger          *slog.Logger
	ManagerObserver indicator.Observer
	RenderObserver  render.Observer
}

// Chart is one instrument's live chart. All methods are safe for concurrent
// use.
type Chart struct {
	cfg   Config
	key   string
	log   *slog.Logger
	mgr   *indicator.Manager
	cache *chartcache.Cache
	rend  *render.Renderer

	mu      sync.RWMutex
	candles []model.Candle
	subs    map[chan struct{}]struct{}

	saveCh    chan []indicator.Instance
	savedMu   sync.Mutex
	savedHash string
}

// NewChart creates an empty chart. Call Restore to load the saved layout.
func NewChart(reg *indicator.Registry, cfg Config) (*Chart, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("chart", cfg.Exchange+":"+cfg.Token), slog.Int("tf", cfg.TF))

	cache, err := chartcache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("chart cache: %w", err)
	}

	mopts := []indicator.ManagerOption{indicator.WithLogger(log)}
	if cfg.Debounce > 0 {
		mopts = append(mopts, indicator.WithDebounce(cfg.Debounce))
	}
	if cfg.ManagerObserver != nil {
		mopts = append(mopts, indicator.WithObserver(cfg.ManagerObserver))
	}
	ropts := []render.Option{render.WithLogger(log)}
	if cfg.RenderObserver != nil {
		ropts = append(ropts, render.WithObserver(cfg.RenderObserver))
	}

	c := &Chart{
		cfg:    cfg,
		key:    LayoutKey(cfg.Exchange+":"+cfg.Token, cfg.TF),
		log:    log,
		mgr:    indicator.NewManager(reg, mopts...),
		cache:  cache,
		rend:   render.New(reg, cache, ropts...),
		subs:   make(map[chan struct{}]struct{}),
		saveCh: make(chan []indicator.Instance, 1),
	}
	c.mgr.OnChange(c.changed)
	return c, nil
}

// LayoutKey returns the persistence key of a chart's layout.
func LayoutKey(token string, tf int) string {
	return "chart:layout:" + token + ":" + model.Itoa(tf)
}

// Key returns the layout key of this chart.
func (c *Chart) Key() string { return c.key }

// Manager exposes the indicator manager.
func (c *Chart) Manager() *indicator.Manager { return c.mgr }

// Restore loads the saved layout, falling back to the presets when none is
// stored or the store fails.
func (c *Chart) Restore(ctx context.Context) {
	var list []indicator.Instance
	if c.cfg.Store != nil {
		saved, err := c.cfg.Store.Load(ctx, c.key)
		if err != nil {
			c.log.Warn("layout load failed, using presets", slog.Any("error", err))
		}
		list = saved
	}
	source := "store"
	if list == nil {
		list = c.cfg.Presets
		source = "presets"
	}
	c.savedMu.Lock()
	c.savedHash = fingerprint(list)
	c.savedMu.Unlock()
	c.mgr.Load(list)
	c.log.Info("layout restored", slog.String("source", source), slog.Int("indicators", len(list)))
}

// Run persists layout changes until ctx is cancelled.
func (c *Chart) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case list := <-c.saveCh:
			if c.cfg.Store == nil {
				continue
			}
			sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.cfg.Store.Save(sctx, c.key, list)
			cancel()
			if err != nil {
				c.log.Error("layout save failed", slog.Any("error", err))
				continue
			}
			c.log.Debug("layout saved", slog.Int("indicators", len(list)))
		}
	}
}

// changed runs after every recalculation and removal.
func (c *Chart) changed(list []indicator.Instance) {
	c.broadcast()

	h := fingerprint(list)
	c.savedMu.Lock()
	same := h == c.savedHash
	c.savedHash = h
	c.savedMu.Unlock()
	if same {
		return
	}
	stripped := stripLayout(list)
	// Replace any unsaved older layout.
	select {
	case <-c.saveCh:
	default:
	}
	select {
	case c.saveCh <- stripped:
	default:
	}
}

// SetHistory replaces the candle history and recalculates.
func (c *Chart) SetHistory(candles []model.Candle) {
	c.mu.Lock()
	c.candles = candles
	c.mu.Unlock()
	c.cache.Purge()
	c.mgr.Recalculate(candles)
	c.broadcast()
}

// Apply appends a live candle, or replaces the newest one when it shares its
// bucket, and triggers a debounced recalculation. It returns the history
// length before and after.
func (c *Chart) Apply(tfc model.TFCandle) (prev, total int) {
	c.mu.Lock()
	prev = len(c.candles)
	next, ok := model.Upsert(c.candles, tfc.ToCandle())
	if !ok {
		c.mu.Unlock()
		return prev, prev
	}
	c.candles = next
	c.mu.Unlock()

	c.mgr.Recalculate(next)
	c.broadcast()
	return prev, len(next)
}

// Candles returns the current history. Treat it as read-only.
func (c *Chart) Candles() []model.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.candles
}

// Len returns the history length.
func (c *Chart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.candles)
}

// Indicators returns the current indicator list.
func (c *Chart) Indicators() []indicator.Instance { return c.mgr.Indicators() }

// Add shows an indicator of kind, creating it if needed. created is false
// when an existing instance was shown again; params are then ignored.
func (c *Chart) Add(kind indicator.Kind, params indicator.Params) (in indicator.Instance, created bool, err error) {
	return c.mgr.Ensure(kind, params)
}

// Update patches indicator id.
func (c *Chart) Update(id string, patch indicator.Patch) (indicator.Instance, error) {
	in, ok := c.mgr.Update(id, patch)
	if !ok {
		return indicator.Instance{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return in, nil
}

// Remove deletes indicator id.
func (c *Chart) Remove(id string) error {
	if !c.mgr.Remove(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Toggle flips the visibility of indicator id.
func (c *Chart) Toggle(id string) (indicator.Instance, error) {
	in, ok := c.mgr.ToggleVisible(id)
	if !ok {
		return indicator.Instance{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return in, nil
}

// Frame snapshots the chart for v.
func (c *Chart) Frame(v *Viewer) render.Frame {
	return render.Frame{
		Candles:    c.Candles(),
		Indicators: c.mgr.Indicators(),
		Range:      v.Range,
		Width:      v.Width,
		Height:     v.Height,
		Theme:      v.Theme,
		Dragging:   v.Dragging,
	}
}

// RenderPNG paints one frame for v and encodes it as PNG.
func (c *Chart) RenderPNG(v *Viewer) ([]byte, render.Layout, error) {
	f := c.Frame(v)
	if !frameSizeOK(f.Width, MaxWidth) || !frameSizeOK(f.Height, MaxHeight) {
		return nil, render.Layout{}, fmt.Errorf("%w: %vx%v", ErrFrameSize, f.Width, f.Height)
	}
	rr, err := chart.PNG(int(f.Width), int(f.Height))
	if err != nil {
		return nil, render.Layout{}, fmt.Errorf("png renderer: %w", err)
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, render.Layout{}, fmt.Errorf("load font: %w", err)
	}
	rr.SetFont(font)

	layout := c.rend.Paint(rr, f)

	var buf bytes.Buffer
	if err := rr.Save(&buf); err != nil {
		return nil, render.Layout{}, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), layout, nil
}

func frameSizeOK(v, limit float64) bool {
	return !math.IsNaN(v) && v >= 1 && v <= limit
}

// Click hit-tests pixel (x, y) in v and applies the panel button under it:
// collapse toggles the panel, close removes the indicator.
func (c *Chart) Click(v *Viewer, x, y float64) (render.Hit, bool, error) {
	hit, ok := render.HitTest(c.Frame(v), x, y)
	if !ok {
		return render.Hit{}, false, nil
	}
	switch hit.Target {
	case render.HitCollapse:
		in, found := c.mgr.Get(hit.ID)
		if !found {
			return hit, true, fmt.Errorf("%w: %s", ErrNotFound, hit.ID)
		}
		collapsed := !in.Collapsed
		_, err := c.Update(hit.ID, indicator.Patch{Collapsed: &collapsed})
		return hit, true, err
	case render.HitClose:
		return hit, true, c.Remove(hit.ID)
	}
	return hit, true, nil
}

// Stats is a snapshot of the chart's activity counters.
type Stats struct {
	Candles    int                                   `json:"candles"`
	Indicators int                                   `json:"indicators"`
	Manager    indicator.Stats                       `json:"manager"`
	Cache      map[chartcache.Kind]chartcache.Counts `json:"cache"`
}

// Stats returns the chart's counters.
func (c *Chart) Stats() Stats {
	return Stats{
		Candles:    c.Len(),
		Indicators: len(c.mgr.Indicators()),
		Manager:    c.mgr.Stats(),
		Cache:      c.rend.PaintStats(),
	}
}

// Subscribe returns a channel signalled whenever the chart changes, and a
// function that cancels the subscription. Signals coalesce.
func (c *Chart) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()
	return ch, func() {
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
	}
}

func (c *Chart) broadcast() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func stripLayout(list []indicator.Instance) []indicator.Instance {
	out := make([]indicator.Instance, len(list))
	for i, in := range list {
		in.Data = nil
		in.Revision = 0
		out[i] = in
	}
	return out
}

// fingerprint identifies a layout independently of calculated data.
func fingerprint(list []indicator.Instance) string {
	b, err := json.Marshal(stripLayout(list))
	if err != nil {
		return ""
	}
	return string(b)
}

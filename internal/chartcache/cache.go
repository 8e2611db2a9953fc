// Package chartcache memoizes the per-frame work of the renderer: visible
// indicator slices, overlay line paths and whole sub-panel layers.
//
// Every entry expires TTL after it was written. Path and panel entries also
// carry the paint parameters they were built with and miss when those differ.
// Each kind is held in a bounded LRU so a long session cannot grow without
// limit; the bound is a safety net, staleness is still decided at read time.
package chartcache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"advchart/internal/draw"
	"advchart/internal/viewport"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultTTL        = 2 * time.Second
	DefaultMaxEntries = 2048
)

// Kind labels the three caches for metrics.
type Kind string

const (
	KindData  Kind = "data"
	KindPath  Kind = "path"
	KindPanel Kind = "panel"
)

// Observer is notified of cache traffic. The metrics package implements it.
type Observer interface {
	CacheHit(kind Kind)
	CacheMiss(kind Kind)
	CacheEvicted(kind Kind)
}

type nopObserver struct{}

func (nopObserver) CacheHit(Kind)     {}
func (nopObserver) CacheMiss(Kind)    {}
func (nopObserver) CacheEvicted(Kind) {}

// Options configures a Cache.
type Options struct {
	MaxEntries int // per kind
	TTL        time.Duration
	Now        func() time.Time
	Observer   Observer
}

// Window identifies a visible slice by its first and last candle timestamps.
type Window struct {
	FirstTS, LastTS int64
}

// Geometry is the pixel and value space a path was built in. Top is the y of
// the pane. Span is the visible range length in candles; the range start is
// not part of the key because cached paths are shifted to the current start
// on a hit.
type Geometry struct {
	Top           float64
	Width, Height float64
	Lo, Hi        float64
	Span          float64
}

// Paint holds the parameters that must match exactly for a path or panel
// hit. Revision stands for the data snapshot the path was built from.
type Paint struct {
	Color    drawing.Color
	Width    float64
	Style    draw.LineStyle
	Revision uint64
	Dragging bool
}

// DataKey addresses a visible data slice.
type DataKey struct {
	ID     string
	Window Window
}

// PathKey addresses an overlay path or a panel layer.
type PathKey struct {
	ID       string
	Window   Window
	Geometry Geometry
}

type dataEntry struct {
	slice     viewport.Slice
	sourceLen int
	revision  uint64
	at        time.Time
}

type pathEntry struct {
	path  draw.Path
	paint Paint
	start float64
	at    time.Time
}

type panelEntry struct {
	layer draw.Layer
	paint Paint
	start float64
	at    time.Time
}

// Cache holds the three render caches of one chart. It is safe for
// concurrent use; each chart owns its own Cache.
type Cache struct {
	ttl time.Duration
	now func() time.Time
	obs Observer

	data   *lru.Cache[DataKey, dataEntry]
	paths  *lru.Cache[PathKey, pathEntry]
	panels *lru.Cache[PathKey, panelEntry]

	mu    sync.Mutex
	stats map[Kind]*Counts
}

// Counts is the hit/miss tally of one cache kind.
type Counts struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Evicted uint64 `json:"evicted"`
	Len     int    `json:"len"`
}

// New creates a Cache. Zero Options fields take the package defaults.
func New(opts Options) (*Cache, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	c := &Cache{
		ttl: opts.TTL,
		now: opts.Now,
		obs: opts.Observer,
		stats: map[Kind]*Counts{
			KindData:  {},
			KindPath:  {},
			KindPanel: {},
		},
	}

	var err error
	c.data, err = lru.NewWithEvict(opts.MaxEntries, func(DataKey, dataEntry) { c.evicted(KindData) })
	if err != nil {
		return nil, fmt.Errorf("data cache: %w", err)
	}
	c.paths, err = lru.NewWithEvict(opts.MaxEntries, func(PathKey, pathEntry) { c.evicted(KindPath) })
	if err != nil {
		return nil, fmt.Errorf("path cache: %w", err)
	}
	c.panels, err = lru.NewWithEvict(opts.MaxEntries, func(PathKey, panelEntry) { c.evicted(KindPanel) })
	if err != nil {
		return nil, fmt.Errorf("panel cache: %w", err)
	}
	return c, nil
}

func (c *Cache) fresh(at time.Time) bool {
	return c.now().Sub(at) <= c.ttl
}

// Data returns the cached slice for key if it was built from a history of
// sourceLen candles at the given revision and is not stale.
func (c *Cache) Data(key DataKey, sourceLen int, revision uint64) (viewport.Slice, bool) {
	e, ok := c.data.Get(key)
	if !ok || e.sourceLen != sourceLen || e.revision != revision || !c.fresh(e.at) {
		c.miss(KindData)
		return viewport.Slice{}, false
	}
	c.hit(KindData)
	return e.slice, true
}

// PutData stores a slice.
func (c *Cache) PutData(key DataKey, sourceLen int, revision uint64, s viewport.Slice) {
	c.data.Add(key, dataEntry{slice: s, sourceLen: sourceLen, revision: revision, at: c.now()})
}

// Path returns the cached overlay path for key, moved horizontally from the
// range start it was built at to start. Overlay paths are honored whether or
// not a drag is in progress.
func (c *Cache) Path(key PathKey, paint Paint, start float64) (draw.Path, bool) {
	e, ok := c.paths.Get(key)
	if !ok || !samePaint(e.paint, paint) || !c.fresh(e.at) {
		c.miss(KindPath)
		return draw.Path{}, false
	}
	c.hit(KindPath)
	dx := shift(key.Geometry, e.start, start)
	if dx == 0 {
		return e.path, true
	}
	return e.path.Translate(dx, 0), true
}

// shift is the pixel offset that moves geometry built at range start from
// to range start to.
func shift(g Geometry, from, to float64) float64 {
	if from == to || g.Span <= 0 {
		return 0
	}
	return (from - to) / g.Span * g.Width
}

// PutPath stores an overlay path built for a view starting at start.
func (c *Cache) PutPath(key PathKey, paint Paint, start float64, p draw.Path) {
	c.paths.Add(key, pathEntry{path: p, paint: paint, start: start, at: c.now()})
}

// Panel returns a cached sub-panel layer with its scrolling shapes moved from
// the range start it was built at to start. Panels are only reused while a
// drag is in progress; any other frame is a miss so panels repaint fresh.
func (c *Cache) Panel(key PathKey, paint Paint, start float64) (draw.Layer, bool) {
	if !paint.Dragging {
		c.miss(KindPanel)
		return draw.Layer{}, false
	}
	e, ok := c.panels.Get(key)
	if !ok || !samePaint(e.paint, paint) || !c.fresh(e.at) {
		c.miss(KindPanel)
		return draw.Layer{}, false
	}
	c.hit(KindPanel)
	return e.layer.Shift(shift(key.Geometry, e.start, start)), true
}

// PutPanel stores a panel layer built for a view starting at start. Layers
// are stored on every frame so the first drag frame can already reuse one.
func (c *Cache) PutPanel(key PathKey, paint Paint, start float64, l draw.Layer) {
	c.panels.Add(key, panelEntry{layer: l, paint: paint, start: start, at: c.now()})
}

// samePaint compares everything but the drag flag, which only selects the
// lookup policy.
func samePaint(a, b Paint) bool {
	return a.Color == b.Color && a.Width == b.Width && a.Style == b.Style && a.Revision == b.Revision
}

// Purge drops every entry. Called when the history is replaced wholesale.
func (c *Cache) Purge() {
	c.data.Purge()
	c.paths.Purge()
	c.panels.Purge()
}

// Stats returns a snapshot of the counters per kind.
func (c *Cache) Stats() map[Kind]Counts {
	lens := map[Kind]int{
		KindData:  c.data.Len(),
		KindPath:  c.paths.Len(),
		KindPanel: c.panels.Len(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Kind]Counts, len(c.stats))
	for k, v := range c.stats {
		counts := *v
		counts.Len = lens[k]
		out[k] = counts
	}
	return out
}

func (c *Cache) hit(k Kind) {
	c.mu.Lock()
	c.stats[k].Hits++
	c.mu.Unlock()
	c.obs.CacheHit(k)
}

func (c *Cache) miss(k Kind) {
	c.mu.Lock()
	c.stats[k].Misses++
	c.mu.Unlock()
	c.obs.CacheMiss(k)
}

func (c *Cache) evicted(k Kind) {
	c.mu.Lock()
	c.stats[k].Evicted++
	c.mu.Unlock()
	c.obs.CacheEvicted(k)
}

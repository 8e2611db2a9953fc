package session

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advchart/internal/draw"
	"advchart/internal/indicator"
	"advchart/internal/model"
	"advchart/internal/render"
)

type memStore struct {
	mu      sync.Mutex
	layouts map[string][]indicator.Instance
	saves   int
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{layouts: make(map[string][]indicator.Instance)}
}

func (s *memStore) Load(_ context.Context, key string) ([]indicator.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.layouts[key], nil
}

func (s *memStore) Save(_ context.Context, key string, list []indicator.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.layouts[key] = list
	return nil
}

func (s *memStore) get(key string) []indicator.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layouts[key]
}

func tfCandles(n int) []model.TFCandle {
	base := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	out := make([]model.TFCandle, n)
	for i := range out {
		p := int64(10000 + (i%7)*25 + i*3)
		out[i] = model.TFCandle{
			Exchange: "NSE", Token: "2885", TF: 60,
			TS:   base.Add(time.Duration(i) * time.Minute),
			Open: p, High: p + 40, Low: p - 40, Close: p + 15, Volume: int64(1000 + i),
		}
	}
	return out
}

func presets(t *testing.T) []indicator.Instance {
	t.Helper()
	return []indicator.Instance{
		{Kind: indicator.KindSMA, Visible: true, Params: indicator.Params{"period": 5}},
		{Kind: indicator.KindRSI, Visible: true, SeparatePanel: true},
	}
}

func newTestChart(t *testing.T, store LayoutStore) *Chart {
	t.Helper()
	c, err := NewChart(indicator.DefaultRegistry(), Config{
		Exchange: "NSE", Token: "2885", TF: 60,
		Store:   store,
		Presets: presets(t),
	})
	require.NoError(t, err)
	return c
}

func TestLayoutKey(t *testing.T) {
	assert.Equal(t, "chart:layout:NSE:2885:60", LayoutKey("NSE:2885", 60))
}

func TestChart_RestorePresets(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("redis down")
	c := newTestChart(t, store)
	c.Restore(context.Background())

	list := c.Indicators()
	require.Len(t, list, 2)
	assert.NotEmpty(t, list[0].ID)
	assert.Equal(t, "close", list[0].Params.String("source"), "defaults fill missing params")
	period, err := list[0].Params.Int("period")
	require.NoError(t, err)
	assert.Equal(t, 5, period)
}

func TestChart_RestoreSaved(t *testing.T) {
	store := newMemStore()
	store.layouts["chart:layout:NSE:2885:60"] = []indicator.Instance{
		{ID: "ema-1", Kind: indicator.KindEMA, Visible: true},
	}
	c := newTestChart(t, store)
	c.Restore(context.Background())

	list := c.Indicators()
	require.Len(t, list, 1)
	assert.Equal(t, "ema-1", list[0].ID)
}

func TestChart_ApplyRecalculates(t *testing.T) {
	c := newTestChart(t, nil)
	c.Restore(context.Background())

	all := tfCandles(30)
	c.SetHistory(model.ToCandles(all[:20]))

	prev, total := c.Apply(all[20])
	assert.Equal(t, 20, prev)
	assert.Equal(t, 21, total)

	// Forming update of the same bucket replaces the last candle.
	forming := all[20]
	forming.Close += 100
	forming.Forming = true
	prev, total = c.Apply(forming)
	assert.Equal(t, 21, prev)
	assert.Equal(t, 21, total)
	assert.InDelta(t, model.PaiseToFloat(forming.Close), c.Candles()[20].Close, 1e-9)

	// Stale candles are ignored.
	_, total = c.Apply(all[3])
	assert.Equal(t, 21, total)

	for _, in := range c.Indicators() {
		assert.Len(t, in.Data, 21, in.Kind.String())
	}
}

func TestChart_MutationsAndNotFound(t *testing.T) {
	c := newTestChart(t, nil)
	c.Restore(context.Background())
	c.SetHistory(model.ToCandles(tfCandles(40)))

	ema, created, err := c.Add(indicator.KindEMA, indicator.Params{"period": 9})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, ema.Data, 40)

	_, created, err = c.Add(indicator.KindEMA, indicator.Params{"period": 50})
	require.NoError(t, err)
	assert.False(t, created)

	hidden, err := c.Toggle(ema.ID)
	require.NoError(t, err)
	assert.False(t, hidden.Visible)

	color := "#ff00aa"
	updated, err := c.Update(ema.ID, indicator.Patch{Color: &color})
	require.NoError(t, err)
	assert.Equal(t, color, updated.Color)

	require.NoError(t, c.Remove(ema.ID))
	assert.ErrorIs(t, c.Remove(ema.ID), ErrNotFound)
	_, err = c.Toggle("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Update("nope", indicator.Patch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChart_SavesLayoutChanges(t *testing.T) {
	store := newMemStore()
	c := newTestChart(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.Restore(ctx)
	c.SetHistory(model.ToCandles(tfCandles(40)))
	_, _, err := c.Add(indicator.KindSMMA, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(store.get(c.Key())) == 3
	}, 2*time.Second, 10*time.Millisecond)

	for _, in := range store.get(c.Key()) {
		assert.Nil(t, in.Data)
		assert.Zero(t, in.Revision)
	}
}

func TestChart_ClickPanelButtons(t *testing.T) {
	c := newTestChart(t, nil)
	c.Restore(context.Background())
	c.SetHistory(model.ToCandles(tfCandles(40)))
	v := NewViewer(c.Len(), 800, 600, draw.ThemeDark)

	layout := render.ComputeLayout(c.Frame(v))
	require.Len(t, layout.Panels, 1)
	slot := layout.Panels[0]

	btn := slot.Collapse()
	hit, ok, err := c.Click(v, btn.X+btn.W/2, btn.Y+btn.H/2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, render.HitCollapse, hit.Target)
	in, _ := c.Manager().Get(slot.ID)
	assert.True(t, in.Collapsed)

	_, ok, err = c.Click(v, 10, 10)
	require.NoError(t, err)
	assert.False(t, ok, "price pane has no buttons")

	slot = render.ComputeLayout(c.Frame(v)).Panels[0]
	btn = slot.Close()
	hit, ok, err = c.Click(v, btn.X+btn.W/2, btn.Y+btn.H/2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, render.HitClose, hit.Target)
	_, found := c.Manager().Get(slot.ID)
	assert.False(t, found)
}

func TestChart_RenderPNG(t *testing.T) {
	c := newTestChart(t, nil)
	c.Restore(context.Background())
	c.SetHistory(model.ToCandles(tfCandles(60)))
	v := NewViewer(c.Len(), 640, 480, draw.ThemeLight)

	png, layout, err := c.RenderPNG(v)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	assert.Len(t, layout.Panels, 1)

	stats := c.Stats()
	assert.Equal(t, 60, stats.Candles)
	assert.Equal(t, 2, stats.Indicators)
}

func TestChart_RenderPNGRejectsFrameSize(t *testing.T) {
	c := newTestChart(t, nil)
	c.Restore(context.Background())
	c.SetHistory(model.ToCandles(tfCandles(60)))

	for _, size := range [][2]float64{{1e9, 480}, {640, 0}, {math.NaN(), 480}, {640, math.Inf(1)}} {
		v := NewViewer(c.Len(), 640, 480, draw.ThemeLight)
		v.Width, v.Height = size[0], size[1]
		require.NotPanics(t, func() {
			_, _, err := c.RenderPNG(v)
			assert.ErrorIs(t, err, ErrFrameSize, "size %v", size)
		})
	}
}

func TestChart_Subscribe(t *testing.T) {
	c := newTestChart(t, nil)
	ch, cancel := c.Subscribe()
	defer cancel()

	c.SetHistory(model.ToCandles(tfCandles(10)))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change signal")
	}

	cancel()
	c.SetHistory(model.ToCandles(tfCandles(11)))
	select {
	case <-ch:
		// A signal queued before cancel is fine; nothing more may follow.
		select {
		case <-ch:
			t.Fatal("signalled after cancel")
		default:
		}
	default:
	}
}

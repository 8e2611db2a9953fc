package indicator

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advchart/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubDefinition lets a test decide what a calculation returns.
type stubDefinition struct {
	kind Kind
	calc func([]model.Candle, Params) ([]float64, error)
}

func (s stubDefinition) Kind() Kind            { return s.kind }
func (s stubDefinition) Category() Category    { return CategoryMomentum }
func (s stubDefinition) Settings() []ParamSpec { return nil }
func (s stubDefinition) Defaults() Instance {
	return Instance{Kind: s.kind, Name: "stub", Params: Params{"period": 1}, Visible: true}
}
func (s stubDefinition) Calculate(c []model.Candle, p Params) ([]float64, error) {
	return s.calc(c, p)
}

type countingObserver struct {
	completed, skipped, failed atomic.Int32
}

func (o *countingObserver) RecalcCompleted(time.Duration, bool) { o.completed.Add(1) }
func (o *countingObserver) RecalcSkipped(string)                { o.skipped.Add(1) }
func (o *countingObserver) CalcFailed(Kind)                     { o.failed.Add(1) }

func newTestManager(t *testing.T, reg *Registry) (*Manager, *fakeClock) {
	t.Helper()
	if reg == nil {
		reg = DefaultRegistry()
	}
	clock := newFakeClock()
	return NewManager(reg, WithClock(clock.Now)), clock
}

func TestManager_AddRecalculateRemove(t *testing.T) {
	m, _ := newTestManager(t, nil)
	candles := ramp(30, 100, 1)

	sma, err := m.Add(KindSMA, nil)
	require.NoError(t, err)
	assert.True(t, sma.Visible)
	assert.Empty(t, sma.Data, "no history yet")

	require.True(t, m.Recalculate(candles))
	got, ok := m.Get(sma.ID)
	require.True(t, ok)
	require.Len(t, got.Data, 30)
	assert.InDelta(t, 119.5, got.Data[29], 1e-9) // mean of 110..129

	rsi, err := m.Add(KindRSI, Params{"period": 5})
	require.NoError(t, err)
	assert.Len(t, rsi.Data, 30, "forced pass uses the latest history")
	assert.Len(t, m.Indicators(), 2)

	assert.True(t, m.Remove(sma.ID))
	assert.False(t, m.Remove(sma.ID))
	list := m.Indicators()
	require.Len(t, list, 1)
	assert.Equal(t, KindRSI, list[0].Kind)
}

func TestManager_AddExistingKindShowsIt(t *testing.T) {
	m, _ := newTestManager(t, nil)

	first, err := m.Add(KindEMA, nil)
	require.NoError(t, err)
	_, ok := m.ToggleVisible(first.ID)
	require.True(t, ok)

	again, created, err := m.Ensure(KindEMA, Params{"period": 50})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.Visible)
	assert.Equal(t, first.Params, again.Params, "existing params are kept")
	assert.Len(t, m.Indicators(), 1)

	_, created, err = m.Ensure(KindSMA, nil)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestManager_AddUnknownKind(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.Add(Kind(77), nil)
	assert.ErrorIs(t, err, ErrUnknownIndicator)
	assert.Empty(t, m.Indicators())
}

func TestManager_ToggleTwiceForcesTwoRuns(t *testing.T) {
	m, _ := newTestManager(t, nil)
	inst, err := m.Add(KindSMA, nil)
	require.NoError(t, err)
	m.Recalculate(ramp(25, 10, 1))
	before := m.Stats()

	off, ok := m.ToggleVisible(inst.ID)
	require.True(t, ok)
	assert.False(t, off.Visible)
	on, ok := m.ToggleVisible(inst.ID)
	require.True(t, ok)
	assert.True(t, on.Visible)

	after := m.Stats()
	assert.Equal(t, before.Forced+2, after.Forced)
	assert.Equal(t, before.Runs+2, after.Runs)
	assert.Len(t, on.Data, 25)
}

func TestManager_UnknownIDIsNoop(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, ok := m.Update("missing", Patch{})
	assert.False(t, ok)
	_, ok = m.ToggleVisible("missing")
	assert.False(t, ok)
	assert.Zero(t, m.Stats().Runs)
}

func TestManager_Debounce(t *testing.T) {
	m, clock := newTestManager(t, nil)
	_, err := m.Add(KindSMA, Params{"period": 3})
	require.NoError(t, err)
	candles := ramp(10, 1, 1)

	require.True(t, m.Recalculate(candles))

	clock.Advance(500 * time.Millisecond)
	assert.False(t, m.Recalculate(candles), "same length inside the window")

	assert.True(t, m.Recalculate(ramp(11, 1, 1)), "new candle bypasses the window")

	clock.Advance(999 * time.Millisecond)
	assert.False(t, m.Recalculate(ramp(11, 1, 1)))

	clock.Advance(2 * time.Millisecond)
	assert.True(t, m.Recalculate(ramp(11, 1, 1)))

	assert.Equal(t, uint64(2), m.Stats().Skipped)
}

func TestManager_DebouncedCallStillStoresHistory(t *testing.T) {
	m, _ := newTestManager(t, nil)
	inst, _ := m.Add(KindSMA, Params{"period": 1})
	m.Recalculate(closes(1, 2, 3))

	require.False(t, m.Recalculate(closes(7, 8, 9)))
	m.ForceRecalculate()

	got, _ := m.Get(inst.ID)
	assert.Equal(t, []float64{7, 8, 9}, got.Data)
}

func TestManager_FailureIsolation(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(
		smaDefinition,
		stubDefinition{kind: KindEMA, calc: func([]model.Candle, Params) ([]float64, error) {
			return nil, errors.New("boom")
		}},
		stubDefinition{kind: KindSMMA, calc: func([]model.Candle, Params) ([]float64, error) {
			panic("bad math")
		}},
		stubDefinition{kind: KindRSI, calc: func(c []model.Candle, _ Params) ([]float64, error) {
			if calls.Add(1) > 2 {
				return []float64{1}, nil
			}
			return make([]float64, len(c)), nil
		}},
	)
	obs := &countingObserver{}
	m := NewManager(reg, WithObserver(obs))
	m.Load([]Instance{{Kind: KindSMA, Visible: true}, {Kind: KindEMA}, {Kind: KindSMMA}, {Kind: KindRSI}})

	candles := ramp(30, 100, 1)
	require.True(t, m.Recalculate(candles))

	list := m.Indicators()
	require.Len(t, list, 4)
	assert.Len(t, list[0].Data, 30, "healthy indicator computed")
	assert.Nil(t, list[1].Data)
	assert.Nil(t, list[2].Data)
	assert.Len(t, list[3].Data, 30)
	rsiRevision := list[3].Revision

	// Third call: the RSI stub now returns a malformed series.
	m.ForceRecalculate()
	list = m.Indicators()
	assert.Len(t, list[3].Data, 30, "previous data kept on malformed output")
	assert.Equal(t, rsiRevision, list[3].Revision)

	stats := m.Stats()
	// Two failures in each of three passes plus the malformed RSI.
	assert.Equal(t, uint64(7), stats.Failures)
	assert.Equal(t, int32(7), obs.failed.Load())
}

func TestManager_CalculateWrapsMalformed(t *testing.T) {
	reg := NewRegistry(stubDefinition{kind: KindSMA, calc: func(c []model.Candle, _ Params) ([]float64, error) {
		return make([]float64, len(c)+2), nil
	}})
	m := NewManager(reg)
	_, err := m.calculate(Instance{Kind: KindSMA}, ramp(3, 1, 1))
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestManager_RevisionIncrements(t *testing.T) {
	m, clock := newTestManager(t, nil)
	inst, _ := m.Add(KindSMA, nil)
	first, _ := m.Get(inst.ID)

	m.Recalculate(ramp(5, 1, 1))
	clock.Advance(2 * time.Second)
	m.Recalculate(ramp(5, 1, 1))

	got, _ := m.Get(inst.ID)
	assert.Equal(t, first.Revision+2, got.Revision)
}

func TestManager_ListenerCannotReenter(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, _ = m.Add(KindSMA, nil)

	var nested []bool
	m.OnChange(func([]Instance) {
		nested = append(nested, m.Recalculate(ramp(3, 1, 1)))
	})

	require.True(t, m.Recalculate(ramp(40, 1, 1)))
	assert.Equal(t, []bool{false}, nested)
	assert.Equal(t, uint64(2), m.Stats().Runs)
}

func TestManager_RemoveNotifies(t *testing.T) {
	m, _ := newTestManager(t, nil)
	inst, _ := m.Add(KindSMA, nil)

	var seen [][]Instance
	m.OnChange(func(list []Instance) { seen = append(seen, list) })
	m.Remove(inst.ID)

	require.Len(t, seen, 1)
	assert.Empty(t, seen[0])
}

func TestManager_ForcedTriggerDuringPassIsCoalesced(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	reg := NewRegistry(stubDefinition{kind: KindSMA, calc: func(c []model.Candle, _ Params) ([]float64, error) {
		if calls.Add(1) == 2 {
			close(started)
			<-release
		}
		return make([]float64, len(c)), nil
	}})
	m := NewManager(reg)
	inst, err := m.Add(KindSMA, nil) // first call
	require.NoError(t, err)

	done := make(chan bool)
	go func() { done <- m.Recalculate(ramp(10, 1, 1)) }()
	<-started

	_, ok := m.Update(inst.ID, Patch{Params: Params{"period": 5}})
	require.True(t, ok)
	_, ok = m.ToggleVisible(inst.ID)
	require.True(t, ok)

	close(release)
	require.True(t, <-done)

	// Add, the blocked natural pass, and a single coalesced rerun.
	assert.Equal(t, int32(3), calls.Load())
	stats := m.Stats()
	assert.Equal(t, uint64(3), stats.Runs)
	assert.Equal(t, uint64(2), stats.Skipped)

	got, _ := m.Get(inst.ID)
	assert.Equal(t, 5, got.Params["period"])
	assert.False(t, got.Visible)
	assert.Len(t, got.Data, 10)
}

func TestManager_LoadDropsUnknownKinds(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.Recalculate(ramp(20, 1, 1))

	m.Load([]Instance{
		{ID: "keep", Kind: KindRSI, Params: Params{"period": 7}, Visible: true},
		{Kind: Kind(200)},
		{Kind: KindEMA},
	})

	list := m.Indicators()
	require.Len(t, list, 2)
	assert.Equal(t, "keep", list[0].ID)
	assert.Equal(t, 7, list[0].Params["period"])
	assert.Equal(t, "close", list[0].Params["source"])
	assert.NotEmpty(t, list[1].ID)
	assert.Equal(t, "EMA", list[1].Name)
	assert.Len(t, list[1].Data, 20)
}

func TestManager_ConcurrentUse(t *testing.T) {
	m := NewManager(DefaultRegistry(), WithDebounce(0))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				m.Recalculate(ramp(50+j, 1, 1))
				if j%5 == 0 {
					_, _ = m.Add(KindSMA, nil)
				}
				_ = m.Indicators()
			}
		}(i)
	}
	wg.Wait()

	m.ForceRecalculate()
	list := m.Indicators()
	require.Len(t, list, 1)
	assert.Len(t, list[0].Data, len(m.Latest()))
}

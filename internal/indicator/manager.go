package indicator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"advchart/internal/model"
)

// ErrMalformedOutput is returned when a calculator's output length differs
// from its input length.
var ErrMalformedOutput = errors.New("malformed indicator output")

// DefaultDebounce is the window in which a natural recalculation with an
// unchanged candle count is skipped.
const DefaultDebounce = time.Second

// Observer receives recalculation events. The metrics package implements it.
type Observer interface {
	RecalcCompleted(d time.Duration, forced bool)
	RecalcSkipped(reason string)
	CalcFailed(kind Kind)
}

type nopObserver struct{}

func (nopObserver) RecalcCompleted(time.Duration, bool) {}
func (nopObserver) RecalcSkipped(string)                {}
func (nopObserver) CalcFailed(Kind)                     {}

const (
	stateIdle int32 = iota
	stateCalculating
)

// Stats counts manager activity since creation.
type Stats struct {
	Runs     uint64 `json:"runs"`
	Forced   uint64 `json:"forced"`
	Skipped  uint64 `json:"skipped"`
	Failures uint64 `json:"failures"`
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger calculation failures are reported to.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// WithClock replaces time.Now for debounce decisions.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) ManagerOption {
	return func(m *Manager) { m.debounce = d }
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.obs = o }
}

// Manager owns the indicator list of one chart and keeps every instance's
// Data in step with the latest candle history.
//
// The list is copy-on-write: each change stores a new slice, and the slices
// handed out by Indicators are never modified afterwards. Recalculation runs
// in the caller's goroutine; a trigger that arrives while a pass is in flight
// is dropped, except that forced triggers coalesce into one extra pass so
// user edits are never lost.
type Manager struct {
	reg      *Registry
	log      *slog.Logger
	now      func() time.Time
	debounce time.Duration
	obs      Observer

	state atomic.Int32
	rerun atomic.Bool

	mu        sync.RWMutex
	list      []Instance
	latest    []model.Candle
	lastLen   int
	lastRun   time.Time
	ran       bool
	stats     Stats
	listeners []func([]Instance)
}

// NewManager creates an empty manager backed by reg.
func NewManager(reg *Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		reg:      reg,
		log:      slog.Default(),
		now:      time.Now,
		debounce: DefaultDebounce,
		obs:      nopObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the registry the manager creates instances from.
func (m *Manager) Registry() *Registry { return m.reg }

// OnChange registers fn to be called with the new list after every
// recalculation and every removal. fn runs while the recalculation guard is
// held, so a Recalculate call from inside fn is dropped.
func (m *Manager) OnChange(fn func([]Instance)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Indicators returns the current list. The slice and its instances must be
// treated as read-only.
func (m *Manager) Indicators() []Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list
}

// Get returns the instance with the given id.
func (m *Manager) Get(id string) (Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := indexOf(m.list, id); i >= 0 {
		return m.list[i], true
	}
	return Instance{}, false
}

// Latest returns the most recently seen candle history.
func (m *Manager) Latest() []model.Candle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Stats returns a copy of the activity counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Add makes an indicator of kind visible. If one already exists it is shown
// instead of creating a duplicate; otherwise a new instance is created with
// params merged over the type defaults.
func (m *Manager) Add(kind Kind, params Params) (Instance, error) {
	inst, _, err := m.Ensure(kind, params)
	return inst, err
}

// Ensure is Add that also reports whether a new instance was created.
// params only apply to a new instance; an existing one keeps its own.
func (m *Manager) Ensure(kind Kind, params Params) (Instance, bool, error) {
	m.mu.Lock()
	var id string
	created := false
	if i := indexOfKind(m.list, kind); i >= 0 {
		visible := true
		next := cloneList(m.list)
		next[i] = Patch{Visible: &visible}.Apply(next[i])
		m.list = next
		id = next[i].ID
	} else {
		inst, err := m.reg.Create(kind, Patch{Params: params})
		if err != nil {
			m.mu.Unlock()
			return Instance{}, false, err
		}
		inst.Visible = true
		next := make([]Instance, len(m.list), len(m.list)+1)
		copy(next, m.list)
		m.list = append(next, inst)
		id = inst.ID
		created = true
	}
	m.mu.Unlock()

	m.ForceRecalculate()
	inst, _ := m.Get(id)
	return inst, created, nil
}

// Remove deletes the instance with the given id. It reports whether one
// was found.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	i := indexOf(m.list, id)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	next := make([]Instance, 0, len(m.list)-1)
	next = append(next, m.list[:i]...)
	next = append(next, m.list[i+1:]...)
	m.list = next
	listeners := m.listeners
	m.mu.Unlock()

	notify(listeners, next)
	return true
}

// Update applies patch to the instance with the given id and recalculates.
// It is a no-op returning false when the id is unknown.
func (m *Manager) Update(id string, patch Patch) (Instance, bool) {
	m.mu.Lock()
	i := indexOf(m.list, id)
	if i < 0 {
		m.mu.Unlock()
		return Instance{}, false
	}
	next := cloneList(m.list)
	next[i] = patch.Apply(next[i])
	m.list = next
	m.mu.Unlock()

	m.ForceRecalculate()
	return m.Get(id)
}

// ToggleVisible flips the visibility of the instance with the given id and
// recalculates so a newly shown indicator has fresh data.
func (m *Manager) ToggleVisible(id string) (Instance, bool) {
	m.mu.Lock()
	i := indexOf(m.list, id)
	if i < 0 {
		m.mu.Unlock()
		return Instance{}, false
	}
	visible := !m.list[i].Visible
	next := cloneList(m.list)
	next[i] = Patch{Visible: &visible}.Apply(next[i])
	m.list = next
	m.mu.Unlock()

	m.ForceRecalculate()
	return m.Get(id)
}

// Load replaces the whole list, e.g. with a restored layout. Instances of
// unknown kinds are dropped with a warning; missing ids are generated.
func (m *Manager) Load(instances []Instance) {
	next := make([]Instance, 0, len(instances))
	for _, in := range instances {
		fresh, err := m.reg.Create(in.Kind, Patch{})
		if err != nil {
			m.log.Warn("dropping indicator from layout", slog.String("type", in.Kind.String()), slog.Any("error", err))
			continue
		}
		restored := in.Clone()
		restored.Params = fresh.Params.Merge(in.Params)
		restored.Data = nil
		restored.Revision = 0
		if restored.ID == "" {
			restored.ID = fresh.ID
		}
		if restored.Name == "" {
			restored.Name = fresh.Name
		}
		next = append(next, restored)
	}
	m.mu.Lock()
	m.list = next
	m.mu.Unlock()

	m.ForceRecalculate()
}

// Recalculate stores candles as the latest history and recalculates every
// instance. It is skipped when a pass completed less than the debounce
// window ago with the same candle count, or when a pass is in flight.
// It reports whether a pass ran.
func (m *Manager) Recalculate(candles []model.Candle) bool {
	m.mu.Lock()
	m.latest = candles
	if m.ran && len(candles) == m.lastLen && m.now().Sub(m.lastRun) < m.debounce {
		m.stats.Skipped++
		m.mu.Unlock()
		m.obs.RecalcSkipped("debounce")
		return false
	}
	m.mu.Unlock()
	return m.run(false)
}

// ForceRecalculate recalculates against the latest history, ignoring the
// debounce window. If a pass is in flight, one more pass is run after it.
func (m *Manager) ForceRecalculate() bool {
	return m.run(true)
}

func (m *Manager) run(forced bool) bool {
	if !m.state.CompareAndSwap(stateIdle, stateCalculating) {
		if forced {
			m.rerun.Store(true)
		}
		m.mu.Lock()
		m.stats.Skipped++
		m.mu.Unlock()
		m.obs.RecalcSkipped("in_flight")
		return false
	}
	for {
		m.rerun.Store(false)
		m.pass(forced)
		m.state.Store(stateIdle)
		if !m.rerun.Load() || !m.state.CompareAndSwap(stateIdle, stateCalculating) {
			return true
		}
		forced = true
	}
}

type calcResult struct {
	data   []float64
	params string
}

// pass calculates outside the lock against a snapshot, then merges results
// into whatever list is current. An instance whose params changed meanwhile
// keeps its old data; the change's own forced trigger reruns it.
func (m *Manager) pass(forced bool) {
	start := m.now()
	m.mu.RLock()
	list := m.list
	candles := m.latest
	m.mu.RUnlock()

	results := make(map[string]calcResult, len(list))
	var failures uint64
	for _, in := range list {
		data, err := m.calculate(in, candles)
		if err != nil {
			failures++
			m.obs.CalcFailed(in.Kind)
			m.log.Error("indicator calculation failed",
				slog.String("indicator_id", in.ID),
				slog.String("type", in.Kind.String()),
				slog.Any("error", err),
			)
			continue
		}
		results[in.ID] = calcResult{data: data, params: in.Params.Key()}
	}

	m.mu.Lock()
	next := cloneList(m.list)
	for i := range next {
		r, ok := results[next[i].ID]
		if !ok || r.params != next[i].Params.Key() {
			continue
		}
		next[i].Data = r.data
		next[i].Revision++
	}
	m.list = next
	m.lastLen = len(candles)
	m.lastRun = m.now()
	m.ran = true
	m.stats.Runs++
	if forced {
		m.stats.Forced++
	}
	m.stats.Failures += failures
	listeners := m.listeners
	m.mu.Unlock()

	m.obs.RecalcCompleted(m.now().Sub(start), forced)
	notify(listeners, next)
}

// calculate isolates one definition: errors, panics and wrong-length output
// all come back as an error.
func (m *Manager) calculate(in Instance, candles []model.Candle) (data []float64, err error) {
	def, err := m.reg.Get(in.Kind)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("calculate %s panicked: %v", in.Kind, r)
		}
	}()
	data, err = def.Calculate(candles, in.Params)
	if err != nil {
		return nil, fmt.Errorf("calculate %s: %w", in.Kind, err)
	}
	if len(data) != len(candles) {
		return nil, fmt.Errorf("%w: %s returned %d values for %d candles", ErrMalformedOutput, in.Kind, len(data), len(candles))
	}
	return data, nil
}

func notify(listeners []func([]Instance), list []Instance) {
	for _, fn := range listeners {
		fn(list)
	}
}

func cloneList(list []Instance) []Instance {
	out := make([]Instance, len(list))
	copy(out, list)
	return out
}

func indexOf(list []Instance, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfKind(list []Instance, kind Kind) int {
	for i := range list {
		if list[i].Kind == kind {
			return i
		}
	}
	return -1
}

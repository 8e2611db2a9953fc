package indicator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"advchart/internal/draw"
	"advchart/internal/model"
)

// ErrUnknownIndicator is returned when a type is not in the registry.
var ErrUnknownIndicator = errors.New("unknown indicator type")

// Kind is the closed set of indicator types.
type Kind uint8

const (
	KindSMA Kind = iota + 1
	KindEMA
	KindSMMA
	KindRSI
)

var kindNames = map[Kind]string{
	KindSMA:  "sma",
	KindEMA:  "ema",
	KindSMMA: "smma",
	KindRSI:  "rsi",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a type name such as "rsi" to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownIndicator, name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Category groups indicator types in a settings UI. It has no effect on
// calculation or rendering.
type Category string

const (
	CategoryPopular    Category = "popular"
	CategoryTrend      Category = "trend"
	CategoryMomentum   Category = "momentum"
	CategoryVolatility Category = "volatility"
	CategoryVolume     Category = "volume"
)

var categoryOrder = []Category{CategoryPopular, CategoryTrend, CategoryMomentum, CategoryVolatility, CategoryVolume}

// Definition is the immutable blueprint of an indicator type.
type Definition interface {
	Kind() Kind
	Category() Category
	// Defaults returns a fresh prototype instance; callers may mutate it.
	Defaults() Instance
	// Settings describes the editable parameters.
	Settings() []ParamSpec
	// Calculate returns one value per candle.
	Calculate(candles []model.Candle, params Params) ([]float64, error)
}

// PanelRenderer is implemented by definitions that paint their own
// stacked panel below the price and volume panes.
type PanelRenderer interface {
	// Scale returns the value range of the panel for the visible data.
	Scale(visible []float64) (lo, hi float64)
	// ReferenceLevels are the horizontal guide values labelled on the axis.
	ReferenceLevels() []float64
	// RenderPanel builds the panel's shapes. It must not paint directly so
	// the result can be cached and replayed.
	RenderPanel(p Panel) (draw.Layer, error)
}

// ThemedColors is implemented by definitions that pick a default line
// color per theme.
type ThemedColors interface {
	ThemeColor(theme draw.Theme) string
}

// Registry is a read-only lookup from Kind to Definition. It is built once
// and shared; it holds no per-chart state.
type Registry struct {
	defs map[Kind]Definition
}

// NewRegistry builds a registry from defs. A later definition for the same
// kind replaces an earlier one.
func NewRegistry(defs ...Definition) *Registry {
	m := make(map[Kind]Definition, len(defs))
	for _, d := range defs {
		m[d.Kind()] = d
	}
	return &Registry{defs: m}
}

// DefaultRegistry returns a registry with every built-in indicator.
func DefaultRegistry() *Registry {
	return NewRegistry(smaDefinition, emaDefinition, smmaDefinition, rsiDefinition{})
}

// Get returns the definition for kind.
func (r *Registry) Get(kind Kind) (Definition, error) {
	d, ok := r.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndicator, kind)
	}
	return d, nil
}

// Kinds returns the registered kinds in ascending order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.defs))
	for k := range r.defs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Create returns a new instance of kind: a copy of the definition's defaults
// with overrides applied and a fresh id. Params are merged key by key so a
// partial override keeps the untouched defaults.
func (r *Registry) Create(kind Kind, overrides Patch) (Instance, error) {
	def, err := r.Get(kind)
	if err != nil {
		return Instance{}, err
	}
	inst := def.Defaults().Clone()
	inst.Kind = kind
	inst = overrides.Apply(inst)
	inst.ID = uuid.NewString()
	return inst, nil
}

// CatalogEntry describes one indicator type for a host settings panel.
type CatalogEntry struct {
	Kind          Kind        `json:"type"`
	Name          string      `json:"name"`
	SeparatePanel bool        `json:"separate_panel"`
	Settings      []ParamSpec `json:"settings"`
}

// CatalogGroup lists the entries of one category.
type CatalogGroup struct {
	Category Category       `json:"category"`
	Entries  []CatalogEntry `json:"entries"`
}

// Catalog groups every registered type by category, in a fixed category
// order. Empty categories are omitted.
func (r *Registry) Catalog() []CatalogGroup {
	byCat := make(map[Category][]CatalogEntry)
	for _, k := range r.Kinds() {
		d := r.defs[k]
		proto := d.Defaults()
		byCat[d.Category()] = append(byCat[d.Category()], CatalogEntry{
			Kind:          k,
			Name:          proto.Name,
			SeparatePanel: proto.SeparatePanel,
			Settings:      d.Settings(),
		})
	}
	var out []CatalogGroup
	for _, c := range categoryOrder {
		if entries := byCat[c]; len(entries) > 0 {
			out = append(out, CatalogGroup{Category: c, Entries: entries})
		}
	}
	return out
}

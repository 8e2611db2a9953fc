package indicator

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Params is the named-parameter map of an indicator instance,
// e.g. {"period": 14, "source": "close"}.
type Params map[string]any

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a new map holding p overlaid with over. Neither input is modified.
func (p Params) Merge(over Params) Params {
	out := p.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Int reads a numeric parameter. Values decoded from JSON arrive as float64
// and from YAML as int; both are accepted.
func (p Params) Int(name string) (int, error) {
	v, ok := p[name]
	if !ok {
		return 0, fmt.Errorf("missing param %q", name)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if math.IsNaN(n) || math.Trunc(n) != n {
			return 0, fmt.Errorf("param %q: %v is not an integer", name, n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("param %q: %w", name, err)
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("param %q: %w", name, err)
		}
		return i, nil
	}
	return 0, fmt.Errorf("param %q: unsupported type %T", name, v)
}

// String reads a string parameter, returning "" when absent.
func (p Params) String(name string) string {
	if s, ok := p[name].(string); ok {
		return s
	}
	return ""
}

// Key renders the params as a stable "k=v,k=v" string, sorted by name.
func (p Params) Key() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%v", k, p[k])
	}
	return b.String()
}

// ParamType is the input control a host should render for a parameter.
type ParamType string

const (
	ParamNumber ParamType = "number"
	ParamSelect ParamType = "select"
)

// ParamSpec describes one editable parameter so a host can build a generic
// settings form.
type ParamSpec struct {
	Name    string    `json:"name"`
	Label   string    `json:"label"`
	Type    ParamType `json:"type"`
	Min     float64   `json:"min,omitempty"`
	Max     float64   `json:"max,omitempty"`
	Step    float64   `json:"step,omitempty"`
	Default any       `json:"default"`
	Options []string  `json:"options,omitempty"`
}

// periodSpec is shared by every built-in type.
func periodSpec(def int, max float64) ParamSpec {
	return ParamSpec{Name: "period", Label: "Period", Type: ParamNumber, Min: 1, Max: max, Step: 1, Default: def}
}

func sourceSpec() ParamSpec {
	return ParamSpec{Name: "source", Label: "Source", Type: ParamSelect, Default: string(SourceClose), Options: sourceOptions()}
}

// periodAndSource validates the two params every built-in reads.
func periodAndSource(p Params) (int, Source, error) {
	period, err := p.Int("period")
	if err != nil {
		return 0, "", err
	}
	if period < 1 {
		return 0, "", fmt.Errorf("period must be >= 1, got %d", period)
	}
	src, err := parseSource(p.String("source"))
	if err != nil {
		return 0, "", err
	}
	return period, src, nil
}

package indicator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"advchart/internal/draw"
)

func TestKind_RoundTrip(t *testing.T) {
	for _, k := range DefaultRegistry().Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("macd")
	assert.ErrorIs(t, err, ErrUnknownIndicator)
}

func TestRegistry_Get(t *testing.T) {
	reg := DefaultRegistry()

	def, err := reg.Get(KindSMA)
	require.NoError(t, err)
	assert.Equal(t, KindSMA, def.Kind())
	_, isPanel := def.(PanelRenderer)
	assert.False(t, isPanel)

	def, err = reg.Get(KindRSI)
	require.NoError(t, err)
	assert.True(t, def.Defaults().SeparatePanel)
	_, isPanel = def.(PanelRenderer)
	assert.True(t, isPanel)

	_, err = reg.Get(Kind(99))
	assert.ErrorIs(t, err, ErrUnknownIndicator)
}

func TestRegistry_CreateDoesNotShareParams(t *testing.T) {
	reg := DefaultRegistry()

	a, err := reg.Create(KindSMA, Patch{})
	require.NoError(t, err)
	b, err := reg.Create(KindSMA, Patch{Params: Params{"period": 50}})
	require.NoError(t, err)

	a.Params["period"] = 7

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 50, b.Params["period"])
	assert.Equal(t, "close", b.Params["source"], "untouched defaults survive a partial override")

	def, _ := reg.Get(KindSMA)
	assert.Equal(t, 20, def.Defaults().Params["period"])
}

func TestRegistry_CreateUnknown(t *testing.T) {
	_, err := DefaultRegistry().Create(Kind(42), Patch{})
	assert.ErrorIs(t, err, ErrUnknownIndicator)
}

func TestRegistry_Catalog(t *testing.T) {
	groups := DefaultRegistry().Catalog()
	require.Len(t, groups, 2)

	assert.Equal(t, CategoryPopular, groups[0].Category)
	assert.Equal(t, CategoryTrend, groups[1].Category)

	var popular []Kind
	for _, e := range groups[0].Entries {
		popular = append(popular, e.Kind)
	}
	assert.Equal(t, []Kind{KindSMA, KindRSI}, popular)

	rsi := groups[0].Entries[1]
	assert.True(t, rsi.SeparatePanel)
	require.Len(t, rsi.Settings, 2)
	assert.Equal(t, "period", rsi.Settings[0].Name)
	assert.Equal(t, 14, rsi.Settings[0].Default)
	assert.Contains(t, rsi.Settings[1].Options, "hlc3")
}

func TestDefinition_RejectsBadParams(t *testing.T) {
	def, _ := DefaultRegistry().Get(KindEMA)
	candles := ramp(10, 1, 1)

	_, err := def.Calculate(candles, Params{"period": 0})
	assert.Error(t, err)
	_, err = def.Calculate(candles, Params{"period": 3, "source": "vwap"})
	assert.Error(t, err)
	_, err = def.Calculate(candles, Params{})
	assert.Error(t, err)

	out, err := def.Calculate(candles, Params{"period": 3.0})
	require.NoError(t, err, "JSON numbers arrive as float64")
	assert.Len(t, out, 10)
}

func TestParams_Key(t *testing.T) {
	a := Params{"period": 14, "source": "close"}
	b := Params{"source": "close", "period": 14}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), Params{"period": 15, "source": "close"}.Key())
}

func TestPatch_Apply(t *testing.T) {
	in := Instance{ID: "x", Kind: KindSMA, Params: Params{"period": 20, "source": "close"}, Visible: true}
	hidden := false
	style := draw.LineDashed

	out := Patch{Visible: &hidden, LineStyle: &style, Params: Params{"period": 5}}.Apply(in)

	assert.False(t, out.Visible)
	assert.Equal(t, draw.LineDashed, out.LineStyle)
	assert.Equal(t, 5, out.Params["period"])
	assert.Equal(t, "close", out.Params["source"])
	assert.True(t, in.Visible, "input left untouched")
	assert.Equal(t, 20, in.Params["period"])
}

func TestInstance_Encoding(t *testing.T) {
	in := Instance{ID: "a", Kind: KindRSI, Name: "RSI", Params: Params{"period": 14}, Visible: true,
		LineStyle: draw.LineDotted, SeparatePanel: true, Data: []float64{1, 2}}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"rsi"`)
	assert.Contains(t, string(raw), `"line_style":"dotted"`)
	assert.NotContains(t, string(raw), "data")

	var fromYAML Instance
	require.NoError(t, yaml.Unmarshal([]byte("type: ema\nparams:\n  period: 21\nvisible: true\n"), &fromYAML))
	assert.Equal(t, KindEMA, fromYAML.Kind)
	period, err := fromYAML.Params.Int("period")
	require.NoError(t, err)
	assert.Equal(t, 21, period)
}

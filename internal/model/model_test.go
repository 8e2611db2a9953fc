package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(times ...int64) []Candle {
	out := make([]Candle, len(times))
	for i, ts := range times {
		out[i] = Candle{Time: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5}
	}
	return out
}

func TestIndexOfTime(t *testing.T) {
	c := seq(100, 200, 300, 400)
	assert.Equal(t, 0, IndexOfTime(c, 100))
	assert.Equal(t, 2, IndexOfTime(c, 300))
	assert.Equal(t, -1, IndexOfTime(c, 250))
	assert.Equal(t, -1, IndexOfTime(c, 500))
	assert.Equal(t, -1, IndexOfTime(nil, 100))
}

func TestUpsert_AppendReplaceDrop(t *testing.T) {
	base := seq(100, 200)

	appended, changed := Upsert(base, Candle{Time: 300, Close: 9})
	require.True(t, changed)
	assert.Len(t, appended, 3)
	assert.Len(t, base, 2, "input must not be modified")

	replaced, changed := Upsert(appended, Candle{Time: 300, Close: 10})
	require.True(t, changed)
	assert.Len(t, replaced, 3)
	assert.Equal(t, 10.0, replaced[2].Close)
	assert.Equal(t, 9.0, appended[2].Close, "previous slice keeps its value")

	same, changed := Upsert(replaced, Candle{Time: 150})
	assert.False(t, changed)
	assert.Len(t, same, 3)
}

func TestTFCandle_ToCandle(t *testing.T) {
	ts := time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC)
	tfc := TFCandle{Token: "99926000", Exchange: "NSE", TF: 60, TS: ts,
		Open: 10010, High: 10250, Low: 9990, Close: 10110, Volume: 42}

	c := tfc.ToCandle()
	assert.Equal(t, ts.UnixMilli(), c.Time)
	assert.InDelta(t, 100.10, c.Open, 1e-9)
	assert.InDelta(t, 102.50, c.High, 1e-9)
	assert.InDelta(t, 99.90, c.Low, 1e-9)
	assert.InDelta(t, 101.10, c.Close, 1e-9)
	assert.Equal(t, 42.0, c.Volume)
	assert.Equal(t, "pub:candle:60s:NSE:99926000", tfc.Channel())
}

func TestItoa(t *testing.T) {
	assert.Equal(t, "0", Itoa(0))
	assert.Equal(t, "300", Itoa(300))
	assert.Equal(t, "-42", Itoa(-42))
}

func TestFormatPaise(t *testing.T) {
	assert.Equal(t, "25660.00", FormatPaise(25660_00))
	assert.Equal(t, "10.10", FormatPaise(1010))
	assert.Equal(t, "-0.05", FormatPaise(-5))
}

package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advchart/internal/model"
)

func TestFeed_Channel(t *testing.T) {
	f := NewFeed(nil, 60, "NSE", "2885", nil)
	assert.Equal(t, "pub:candle:60s:NSE:2885", f.Channel())
}

func TestFeed_Decode(t *testing.T) {
	f := NewFeed(nil, 60, "NSE", "2885", nil)
	ts := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	in := model.TFCandle{Token: "2885", Exchange: "NSE", TF: 60, TS: ts, Open: 10050, High: 10100, Low: 10000, Close: 10075, Volume: 1200, Forming: true}

	got, err := f.decode(string(in.JSON()))
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.InDelta(t, 100.75, got.ToCandle().Close, 1e-9)
}

func TestFeed_DecodeFillsIdentity(t *testing.T) {
	f := NewFeed(nil, 60, "NSE", "2885", nil)
	got, err := f.decode(`{"ts":"2026-03-02T09:15:00Z","open":1,"high":2,"low":1,"close":2}`)
	require.NoError(t, err)
	assert.Equal(t, "NSE:2885", got.Key())
	assert.Equal(t, 60, got.TF)
}

func TestFeed_DecodeRejects(t *testing.T) {
	f := NewFeed(nil, 60, "NSE", "2885", nil)
	for name, payload := range map[string]string{
		"garbage":     `{not json`,
		"no ts":       `{"open":1}`,
		"other token": `{"ts":"2026-03-02T09:15:00Z","token":"11536","exchange":"NSE","tf":60}`,
		"other tf":    `{"ts":"2026-03-02T09:15:00Z","token":"2885","exchange":"NSE","tf":300}`,
	} {
		_, err := f.decode(payload)
		assert.Error(t, err, name)
	}
}

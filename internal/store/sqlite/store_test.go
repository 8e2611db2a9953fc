package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advchart/internal/indicator"
	"advchart/internal/model"
)

func openTestDB(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chart.db")
	w, err := New(WriterConfig{DBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	r, err := NewReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return w, r
}

func minuteCandles(n int) []model.TFCandle {
	base := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	out := make([]model.TFCandle, n)
	for i := range out {
		p := int64(10000 + i*10)
		out[i] = model.TFCandle{
			Token: "2885", Exchange: "NSE", TF: 60,
			TS:   base.Add(time.Duration(i) * time.Minute),
			Open: p, High: p + 20, Low: p - 20, Close: p + 5, Volume: int64(100 * (i + 1)), Count: 60,
		}
	}
	return out
}

func TestLatestTFCandles(t *testing.T) {
	w, r := openTestDB(t)
	ctx := context.Background()
	all := minuteCandles(20)
	require.NoError(t, w.InsertTFCandles(all))

	got, err := r.LatestTFCandles(ctx, "NSE", "2885", 60, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, all[15:], got, "newest five, oldest first")

	other, err := r.LatestTFCandles(ctx, "NSE", "2885", 300, 5)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestReadTFCandles_AfterAndUpsert(t *testing.T) {
	w, r := openTestDB(t)
	ctx := context.Background()
	all := minuteCandles(3)
	require.NoError(t, w.InsertTFCandles(all))

	fixed := all[2]
	fixed.Close = 99999
	require.NoError(t, w.InsertTFCandles([]model.TFCandle{fixed}))

	got, err := r.ReadTFCandles(ctx, "NSE", "2885", 60, all[0].TS.Unix())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(99999), got[1].Close)
}

func TestRunTFCandles_SkipsForming(t *testing.T) {
	w, r := openTestDB(t)
	ctx := context.Background()
	all := minuteCandles(4)
	all[3].Forming = true

	ch := make(chan model.TFCandle, len(all))
	for _, c := range all {
		ch <- c
	}
	close(ch)
	w.RunTFCandles(ctx, ch)

	got, err := r.LatestTFCandles(ctx, "NSE", "2885", 60, 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestLayoutStore(t *testing.T) {
	w, r := openTestDB(t)
	ctx := context.Background()
	s := LayoutStore{W: w, R: r}
	key := "chart:layout:NSE:2885:60"

	list, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, list)

	reg := indicator.DefaultRegistry()
	sma, err := reg.Create(indicator.KindSMA, indicator.Patch{})
	require.NoError(t, err)
	sma.ID = "a"
	for i := 0; i < layoutHistory+3; i++ {
		sma.Name = "SMA " + model.Itoa(i)
		require.NoError(t, s.Save(ctx, key, []indicator.Instance{sma}))
	}

	list, err = s.Load(ctx, key)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "SMA "+model.Itoa(layoutHistory+2), list[0].Name)

	var n int
	require.NoError(t, w.DB().QueryRow(`SELECT COUNT(*) FROM chart_layouts WHERE key = ?`, key).Scan(&n))
	assert.Equal(t, layoutHistory, n)
}

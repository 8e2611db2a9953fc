package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advchart/internal/markethours"
	"advchart/internal/model"
)

func TestWalker_DeterministicAndBounded(t *testing.T) {
	a := NewWalker(7, 500_00)
	b := NewWalker(7, 500_00)
	for i := 0; i < 500; i++ {
		pa, qa := a.Next()
		pb, qb := b.Next()
		require.Equal(t, pa, pb)
		require.Equal(t, qa, qb)
		require.GreaterOrEqual(t, pa, int64(floor))
		require.GreaterOrEqual(t, qa, int64(1))
		require.LessOrEqual(t, qa, int64(100))
	}

	w := NewWalker(1, 10)
	assert.Equal(t, int64(floor), w.Price())
}

func TestStartPrice(t *testing.T) {
	assert.Equal(t, int64(25660_00), StartPrice("99926000"))
	assert.Equal(t, int64(fallbackPrice), StartPrice("unknown"))
}

func TestBuilder_BucketsAndClose(t *testing.T) {
	b := NewBuilder("NSE", "2885", 60)
	b.StaleTolerance = 0
	base := time.Unix(1_700_000_000-1_700_000_000%60, 0)

	var closedSeen []model.TFCandle
	b.OnClose = func(c model.TFCandle) { closedSeen = append(closedSeen, c) }

	f, closed, ok := b.Add(Tick{TS: base, Price: 100, Qty: 1})
	require.True(t, ok)
	assert.Nil(t, closed)
	assert.True(t, f.Forming)
	assert.Equal(t, base.UTC(), f.TS)

	b.Add(Tick{TS: base.Add(10 * time.Second), Price: 120, Qty: 2})
	b.Add(Tick{TS: base.Add(20 * time.Second), Price: 90, Qty: 3})
	f, _, _ = b.Add(Tick{TS: base.Add(59 * time.Second), Price: 110, Qty: 4})
	assert.Equal(t, model.TFCandle{
		Token: "2885", Exchange: "NSE", TF: 60, TS: base.UTC(),
		Open: 100, High: 120, Low: 90, Close: 110, Volume: 10, Count: 4, Forming: true,
	}, f)

	f, closed, ok = b.Add(Tick{TS: base.Add(61 * time.Second), Price: 111, Qty: 1})
	require.True(t, ok)
	require.NotNil(t, closed)
	assert.False(t, closed.Forming)
	assert.Equal(t, int64(110), closed.Close)
	assert.Equal(t, base.Add(time.Minute).UTC(), f.TS)
	assert.Equal(t, int64(111), f.Open)
	require.Len(t, closedSeen, 1)

	last, ok := b.Flush()
	require.True(t, ok)
	assert.False(t, last.Forming)
	_, ok = b.Flush()
	assert.False(t, ok)
}

func TestBuilder_StaleTicks(t *testing.T) {
	b := NewBuilder("NSE", "2885", 60)
	base := time.Unix(1_700_000_000-1_700_000_000%60, 0)
	stale := 0
	b.OnStale = func(Tick) { stale++ }

	b.Add(Tick{TS: base.Add(time.Minute), Price: 100, Qty: 1})

	// Within tolerance: folded into the forming bucket.
	f, closed, ok := b.Add(Tick{TS: base.Add(time.Minute - time.Second), Price: 130, Qty: 1})
	require.True(t, ok)
	assert.Nil(t, closed)
	assert.Equal(t, int64(130), f.High)
	assert.Equal(t, base.Add(time.Minute).UTC(), f.TS)

	// Beyond tolerance: rejected, state untouched.
	f, _, ok = b.Add(Tick{TS: base.Add(30 * time.Second), Price: 1, Qty: 1})
	assert.False(t, ok)
	assert.Equal(t, 1, stale)
	assert.Equal(t, int64(100), f.Low)
}

func TestHistory_Contiguous(t *testing.T) {
	end := time.Unix(1_700_000_000, 0)
	got := History(NewWalker(3, 1000_00), HistoryOptions{Exchange: "NSE", Token: "1594", TF: 300, End: end, N: 50})
	require.Len(t, got, 50)

	last := end.Unix() - end.Unix()%300 - 300
	assert.Equal(t, last, got[49].TS.Unix())
	for i, c := range got {
		assert.False(t, c.Forming)
		assert.Equal(t, ticksPerCandle, c.Count)
		assert.LessOrEqual(t, c.Low, c.Open)
		assert.GreaterOrEqual(t, c.High, c.Close)
		if i > 0 {
			assert.Equal(t, int64(300), c.TS.Unix()-got[i-1].TS.Unix())
		}
	}
}

func TestHistory_SessionsOnly(t *testing.T) {
	// Monday 10:00 IST: 45 minutes into the session, so 100 one-minute
	// candles must reach back into Friday.
	end := time.Date(2026, 3, 16, 10, 0, 0, 0, markethours.IST)
	got := History(NewWalker(5, 812_35), HistoryOptions{Exchange: "NSE", Token: "3045", TF: 60, End: end, N: 100, Sessions: true})
	require.Len(t, got, 100)

	for _, c := range got {
		assert.True(t, markethours.IsMarketOpen(c.TS), "candle at %s outside session", c.TS.In(markethours.IST))
	}
	assert.Equal(t, time.Friday, got[0].TS.In(markethours.IST).Weekday())
	assert.Equal(t, time.Date(2026, 3, 16, 9, 59, 0, 0, markethours.IST).Unix(), got[99].TS.Unix())
	assert.Equal(t, time.Date(2026, 3, 16, 9, 15, 0, 0, markethours.IST).Unix(), got[55].TS.Unix())
	assert.Equal(t, time.Date(2026, 3, 13, 15, 29, 0, 0, markethours.IST).Unix(), got[54].TS.Unix())
}

func TestHistory_Empty(t *testing.T) {
	assert.Nil(t, History(NewWalker(1, 100_00), HistoryOptions{N: 0}))
}

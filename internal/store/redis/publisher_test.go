package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advchart/internal/model"
)

type fakePubSub struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePubSub) Publish(_ context.Context, channel string, message interface{}) *goredis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return goredis.NewIntResult(2, f.err)
}

func TestPublisher_RoundTripsThroughFeedDecode(t *testing.T) {
	fake := &fakePubSub{}
	c := model.TFCandle{Token: "2885", Exchange: "NSE", TF: 60, TS: time.Unix(1_700_000_040, 0).UTC(), Open: 100, High: 110, Low: 90, Close: 105, Forming: true}

	n, err := NewPublisher(fake).Publish(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "pub:candle:60s:NSE:2885", fake.channel)

	got, err := NewFeed(nil, 60, "NSE", "2885", nil).decode(string(fake.payload))
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestPublisher_Error(t *testing.T) {
	fake := &fakePubSub{err: errors.New("conn refused")}
	_, err := NewPublisher(fake).Publish(context.Background(), model.TFCandle{Token: "1", Exchange: "NSE", TF: 60})
	assert.ErrorContains(t, err, "pub:candle:60s:NSE:1")
}

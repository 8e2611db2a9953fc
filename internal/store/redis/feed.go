package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/go-redis/redis/v8"

	"advchart/internal/model"
)

// Feed streams the live candles of one instrument and timeframe from the
// market-data pipeline's pubsub channel. Both forming and closed candles are
// forwarded; the consumer replaces the last candle while a bucket is open.
type Feed struct {
	rdb      *goredis.Client
	tf       int
	exchange string
	token    string
	log      *slog.Logger
}

// NewFeed creates a feed for exchange:token at tf seconds.
func NewFeed(rdb *goredis.Client, tf int, exchange, token string, log *slog.Logger) *Feed {
	if log == nil {
		log = slog.Default()
	}
	return &Feed{rdb: rdb, tf: tf, exchange: exchange, token: token, log: log}
}

// Channel returns the subscribed channel name.
func (f *Feed) Channel() string {
	return model.CandleChannel(f.tf, f.exchange, f.token)
}

// Run subscribes and sends every decoded candle to out. Blocks until ctx is
// cancelled or the subscription closes.
func (f *Feed) Run(ctx context.Context, out chan<- model.TFCandle) error {
	pubsub := f.rdb.Subscribe(ctx, f.Channel())
	defer pubsub.Close()

	// Wait for confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", f.Channel(), err)
	}
	f.log.Info("candle feed subscribed", slog.String("channel", f.Channel()))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			tfc, err := f.decode(msg.Payload)
			if err != nil {
				f.log.Warn("skipping candle payload", slog.String("channel", msg.Channel), slog.Any("error", err))
				continue
			}
			select {
			case out <- tfc:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// decode parses a pipeline payload and checks it belongs to this feed.
// Payloads that omit identity fields inherit the feed's.
func (f *Feed) decode(payload string) (model.TFCandle, error) {
	var tfc model.TFCandle
	if err := json.Unmarshal([]byte(payload), &tfc); err != nil {
		return model.TFCandle{}, fmt.Errorf("unmarshal candle: %w", err)
	}
	if tfc.TS.IsZero() {
		return model.TFCandle{}, fmt.Errorf("candle without timestamp")
	}
	if tfc.TF == 0 {
		tfc.TF = f.tf
	}
	if tfc.Exchange == "" {
		tfc.Exchange = f.exchange
	}
	if tfc.Token == "" {
		tfc.Token = f.token
	}
	if tfc.TF != f.tf || tfc.Exchange != f.exchange || tfc.Token != f.token {
		return model.TFCandle{}, fmt.Errorf("candle for %s@%ds on %s feed", tfc.Key(), tfc.TF, f.Channel())
	}
	return tfc, nil
}

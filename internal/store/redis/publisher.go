package redis

import (
	"context"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"advchart/internal/model"
)

type pubsub interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// Publisher writes TF candles to their pubsub channel, the same channel a
// Feed subscribes to.
type Publisher struct {
	rdb pubsub
}

// NewPublisher wraps a redis client (or anything with Publish).
func NewPublisher(rdb pubsub) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish sends c on c.Channel() and returns the subscriber count.
func (p *Publisher) Publish(ctx context.Context, c model.TFCandle) (int64, error) {
	n, err := p.rdb.Publish(ctx, c.Channel(), c.JSON()).Result()
	if err != nil {
		return 0, fmt.Errorf("publish %s: %w", c.Channel(), err)
	}
	return n, nil
}

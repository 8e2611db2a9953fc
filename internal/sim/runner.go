package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"advchart/internal/markethours"
	"advchart/internal/model"
)

// Runner drives a Walker and Builder in real time, publishing every forming
// snapshot and persisting closed candles.
type Runner struct {
	Walker    *Walker
	Builder   *Builder
	Publisher model.CandlePublisher
	Sink      model.CandleSink // optional
	Interval  time.Duration
	// Sessions pauses the feed outside exchange trading hours.
	Sessions bool
	Log      *slog.Logger

	now func() time.Time
}

// Seed writes generated history ending at the current time unless the
// store already has candles for the instrument. It returns the number of
// candles written.
func (r *Runner) Seed(ctx context.Context, hist model.HistoryReader, n int) (int, error) {
	c, ok := r.Builder.identity()
	existing, err := hist.LatestTFCandles(ctx, c.Exchange, c.Token, c.TF, 1)
	if err != nil {
		return 0, fmt.Errorf("probe history: %w", err)
	}
	if len(existing) > 0 || !ok || n <= 0 || r.Sink == nil {
		return 0, nil
	}
	candles := History(r.Walker, HistoryOptions{
		Exchange: c.Exchange,
		Token:    c.Token,
		TF:       c.TF,
		End:      r.clock(),
		N:        n,
		Sessions: r.Sessions,
	})
	if err := r.Sink.InsertTFCandles(candles); err != nil {
		return 0, fmt.Errorf("seed history: %w", err)
	}
	return len(candles), nil
}

// Run ticks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	interval := r.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	paused := false
	for {
		select {
		case <-ctx.Done():
			if last, ok := r.Builder.Flush(); ok {
				r.persist(log, last)
			}
			return ctx.Err()
		case <-ticker.C:
			now := r.clock()
			if r.Sessions && !markethours.IsMarketOpen(now) {
				if !paused {
					log.Info("market closed, pausing feed", slog.String("status", markethours.StatusString(now)))
					paused = true
				}
				continue
			}
			paused = false
			r.Step(ctx, now)
		}
	}
}

// Step emits one tick at ts.
func (r *Runner) Step(ctx context.Context, ts time.Time) {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	price, qty := r.Walker.Next()
	forming, closed, ok := r.Builder.Add(Tick{TS: ts, Price: price, Qty: qty})
	if !ok {
		return
	}
	if closed != nil {
		r.publish(ctx, log, *closed)
		r.persist(log, *closed)
	}
	r.publish(ctx, log, forming)
}

func (r *Runner) publish(ctx context.Context, log *slog.Logger, c model.TFCandle) {
	if _, err := r.Publisher.Publish(ctx, c); err != nil {
		log.Warn("publish failed", slog.Any("error", err))
	}
}

func (r *Runner) persist(log *slog.Logger, c model.TFCandle) {
	if r.Sink == nil {
		return
	}
	if err := r.Sink.InsertTFCandles([]model.TFCandle{c}); err != nil {
		log.Warn("persist failed", slog.Time("ts", c.TS), slog.Any("error", err))
	}
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// Command candlesim publishes a synthetic live candle stream for one
// instrument so chartd can be run without a market-data pipeline. On first
// start it also seeds the SQLite history chartd loads at boot.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"advchart/config"
	"advchart/internal/logger"
	"advchart/internal/model"
	"advchart/internal/sim"
	redisstore "advchart/internal/store/redis"
	sqlitestore "advchart/internal/store/sqlite"
)

func main() {
	cfg := config.LoadSim()
	log := logger.Init("candlesim", cfg.Base.SlogLevel())
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	exchange, token, _ := cfg.Base.ParseToken()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisstore.NewClient(redisstore.Config{Addr: cfg.Base.RedisAddr, Password: cfg.Base.RedisPassword})
	if err != nil {
		log.Error("redis connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer rdb.Close()

	if dir := filepath.Dir(cfg.Base.SQLitePath); dir != "" {
		os.MkdirAll(dir, 0o755)
	}
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.Base.SQLitePath, Logger: log})
	if err != nil {
		log.Error("sqlite init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer writer.Close()
	reader, err := sqlitestore.NewReader(cfg.Base.SQLitePath)
	if err != nil {
		log.Error("sqlite reader init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer reader.Close()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	price := cfg.StartPrice
	if price == 0 {
		price = sim.StartPrice(token)
	}
	// Continue from the stored close so the live stream joins the history.
	if last, err := reader.LatestTFCandles(ctx, exchange, token, cfg.Base.ChartTF, 1); err == nil && len(last) == 1 {
		price = last[0].Close
	}

	builder := sim.NewBuilder(exchange, token, cfg.Base.ChartTF)
	builder.OnClose = func(c model.TFCandle) {
		log.Debug("candle closed", slog.Time("ts", c.TS), slog.String("close", model.FormatPaise(c.Close)), slog.Int("ticks", c.Count))
	}
	builder.OnStale = func(t sim.Tick) {
		log.Warn("stale tick dropped", slog.Time("ts", t.TS))
	}

	runner := &sim.Runner{
		Walker:    sim.NewWalker(seed, price),
		Builder:   builder,
		Publisher: redisstore.NewPublisher(rdb),
		Sink:      writer,
		Interval:  cfg.Interval,
		Sessions:  cfg.Sessions,
		Log:       log,
	}

	n, err := runner.Seed(ctx, reader, cfg.SeedCandles)
	if err != nil {
		log.Error("history seed failed", slog.Any("error", err))
		os.Exit(1)
	}
	if n > 0 {
		log.Info("history seeded", slog.Int("candles", n))
	}

	log.Info("publishing",
		slog.String("channel", model.CandleChannel(cfg.Base.ChartTF, exchange, token)),
		slog.Duration("interval", cfg.Interval),
		slog.Int64("seed", seed),
		slog.String("start", model.FormatPaise(runner.Walker.Price())),
	)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("simulator stopped", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

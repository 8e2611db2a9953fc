package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"advchart/config"
	"advchart/internal/api"
	"advchart/internal/chartcache"
	"advchart/internal/indicator"
	"advchart/internal/logger"
	"advchart/internal/metrics"
	"advchart/internal/model"
	"advchart/internal/session"
	redisstore "advchart/internal/store/redis"
	sqlitestore "advchart/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	log := logger.Init("chartd", cfg.SlogLevel())
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	exchange, token, _ := cfg.ParseToken()
	log.Info("starting", slog.String("token", cfg.ChartToken), slog.Int("tf", cfg.ChartTF))

	reg := indicator.DefaultRegistry()
	presets := config.DefaultPresets()
	if cfg.PresetsPath != "" {
		p, err := config.LoadPresets(cfg.PresetsPath, reg)
		if err != nil {
			log.Error("presets load failed", slog.Any("error", err))
			os.Exit(1)
		}
		presets = p
	}
	presetList, err := presets.Instances(reg)
	if err != nil {
		log.Error("presets invalid", slog.Any("error", err))
		os.Exit(1)
	}

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite history ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
		os.MkdirAll(dir, 0o755)
	}
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath, Logger: log})
	if err != nil {
		log.Error("sqlite init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer sqlWriter.Close()
	sqlReader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Error("sqlite reader init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer sqlReader.Close()
	health.SetSQLiteOK(true)

	// ---- Redis (optional) ----
	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb, err = redisstore.NewClient(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Warn("redis unavailable, continuing without live feed", slog.Any("error", err))
			rdb = nil
		}
	}
	health.SetRedisConnected(rdb != nil)
	health.StartLivenessChecker(ctx, rdb, sqlWriter.DB(), 10*time.Second)

	// ---- Layout store: Redis when available, SQLite otherwise ----
	var layouts session.LayoutStore = sqlitestore.LayoutStore{W: sqlWriter, R: sqlReader}
	if rdb != nil {
		breaker := redisstore.NewBreaker(3, 10*time.Second)
		breaker.OnStateChange = func(from, to redisstore.State) {
			log.Warn("redis breaker state changed", slog.String("from", from.String()), slog.String("to", to.String()))
		}
		rs := redisstore.NewLayoutStore(rdb, breaker, log)
		go rs.Run(ctx, 5*time.Second)
		layouts = rs
	}

	// ---- Chart ----
	chart, err := session.NewChart(reg, session.Config{
		Exchange: exchange,
		Token:    token,
		TF:       cfg.ChartTF,
		Debounce: cfg.RecalcDebounce,
		Cache: chartcache.Options{
			MaxEntries: cfg.CacheMaxEntries,
			TTL:        cfg.CacheTTL,
			Observer:   prom,
		},
		Store:           layouts,
		Presets:         presetList,
		Logger:          log,
		ManagerObserver: prom,
		RenderObserver:  prom,
	})
	if err != nil {
		log.Error("chart init failed", slog.Any("error", err))
		os.Exit(1)
	}
	chart.Manager().OnChange(func(list []indicator.Instance) {
		prom.IndicatorCount.Set(float64(len(list)))
	})
	chart.Restore(ctx)
	go chart.Run(ctx)

	history, err := sqlReader.LatestTFCandles(ctx, exchange, token, cfg.ChartTF, cfg.HistoryLimit)
	if err != nil {
		log.Error("history load failed", slog.Any("error", err))
	}
	chart.SetHistory(model.ToCandles(history))
	if n := len(history); n > 0 {
		health.SetHistory(history[n-1].TS, n)
	}
	prom.HistoryLen.Set(float64(len(history)))
	log.Info("history loaded", slog.Int("candles", len(history)))

	// ---- Live feed: Redis pubsub -> chart, closed candles -> SQLite ----
	if rdb != nil {
		feedCh := make(chan model.TFCandle, 1000)
		persistCh := make(chan model.TFCandle, 1000)
		go sqlWriter.RunTFCandles(ctx, persistCh)
		go runFeed(ctx, redisstore.NewFeed(rdb, cfg.ChartTF, exchange, token, log), feedCh, log)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case tfc := <-feedCh:
					prom.CandlesReceived.Inc()
					_, total := chart.Apply(tfc)
					prom.HistoryLen.Set(float64(total))
					health.SetHistory(tfc.TS, total)
					if tfc.Forming {
						continue
					}
					select {
					case persistCh <- tfc:
					default:
						log.Warn("persist queue full, dropping candle", slog.Time("ts", tfc.TS))
					}
				}
			}
		}()
	}

	// ---- HTTP ----
	handler := api.NewHandler(chart, reg, log, prom)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.SetupRoutes(handler, health),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", slog.Any("error", err))
		}
	}()

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Info("shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	if rdb != nil {
		rdb.Close()
	}
	log.Info("shutdown complete")
}

// runFeed keeps the pubsub subscription alive, resubscribing with backoff.
func runFeed(ctx context.Context, feed *redisstore.Feed, out chan<- model.TFCandle, log *slog.Logger) {
	backoff := time.Second
	for {
		err := feed.Run(ctx, out)
		if ctx.Err() != nil {
			return
		}
		log.Warn("candle feed stopped, resubscribing", slog.String("channel", feed.Channel()), slog.Any("error", err), slog.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

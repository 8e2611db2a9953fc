package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"advchart/internal/chartcache"
	"advchart/internal/indicator"
)

// Metrics holds all Prometheus metrics for the chart service. It satisfies
// the observer interfaces of the indicator manager, the render cache and the
// renderer, so those packages stay free of Prometheus.
type Metrics struct {
	// Indicator manager
	RecalcRuns     *prometheus.CounterVec // labels: mode=natural|forced
	RecalcSkips    *prometheus.CounterVec // labels: reason=debounce|in_flight
	RecalcDur      prometheus.Histogram
	CalcFailures   *prometheus.CounterVec // labels: type
	IndicatorCount prometheus.Gauge

	// Render cache
	CacheHits      *prometheus.CounterVec // labels: cache=data|path|panel
	CacheMisses    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec

	// Renderer
	PaintDur           prometheus.Histogram
	PanelErrors        *prometheus.CounterVec // labels: type
	AlignmentFallbacks prometheus.Counter

	// Host
	CandlesReceived prometheus.Counter
	HistoryLen      prometheus.Gauge
	WSSessions      prometheus.Gauge
	FramesSent      prometheus.Counter
}

// NewMetrics creates every metric and registers it with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecalcRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_recalc_runs_total",
			Help: "Indicator recalculation passes completed",
		}, []string{"mode"}),
		RecalcSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_recalc_skipped_total",
			Help: "Recalculation triggers dropped (debounce window or pass in flight)",
		}, []string{"reason"}),
		RecalcDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_recalc_duration_seconds",
			Help:    "Latency of one recalculation pass over all indicators",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		CalcFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_indicator_calc_failures_total",
			Help: "Indicator calculations that failed and kept their previous data",
		}, []string{"type"}),
		IndicatorCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartd_indicators",
			Help: "Indicator instances on the chart",
		}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_cache_hits_total",
			Help: "Render cache hits",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_cache_misses_total",
			Help: "Render cache misses, including stale entries",
		}, []string{"cache"}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_cache_evictions_total",
			Help: "Render cache entries evicted by the LRU bound",
		}, []string{"cache"}),

		PaintDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_paint_duration_seconds",
			Help:    "Latency of painting one frame",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		PanelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_panel_render_errors_total",
			Help: "Sub-panels that failed to render and showed an error placeholder",
		}, []string{"type"}),
		AlignmentFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_alignment_fallbacks_total",
			Help: "Visible windows sliced proportionally because timestamps did not match",
		}),

		CandlesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_candles_received_total",
			Help: "Live candles received from the Redis feed",
		}),
		HistoryLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartd_history_candles",
			Help: "Candles in the chart history",
		}),
		WSSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartd_ws_sessions",
			Help: "Open websocket chart sessions",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_frames_sent_total",
			Help: "PNG frames written to clients",
		}),
	}

	reg.MustRegister(
		m.RecalcRuns,
		m.RecalcSkips,
		m.RecalcDur,
		m.CalcFailures,
		m.IndicatorCount,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.PaintDur,
		m.PanelErrors,
		m.AlignmentFallbacks,
		m.CandlesReceived,
		m.HistoryLen,
		m.WSSessions,
		m.FramesSent,
	)

	return m
}

// RecalcCompleted implements indicator.Observer.
func (m *Metrics) RecalcCompleted(d time.Duration, forced bool) {
	mode := "natural"
	if forced {
		mode = "forced"
	}
	m.RecalcRuns.WithLabelValues(mode).Inc()
	m.RecalcDur.Observe(d.Seconds())
}

// RecalcSkipped implements indicator.Observer.
func (m *Metrics) RecalcSkipped(reason string) { m.RecalcSkips.WithLabelValues(reason).Inc() }

// CalcFailed implements indicator.Observer.
func (m *Metrics) CalcFailed(kind indicator.Kind) {
	m.CalcFailures.WithLabelValues(kind.String()).Inc()
}

// CacheHit implements chartcache.Observer.
func (m *Metrics) CacheHit(k chartcache.Kind) { m.CacheHits.WithLabelValues(string(k)).Inc() }

// CacheMiss implements chartcache.Observer.
func (m *Metrics) CacheMiss(k chartcache.Kind) { m.CacheMisses.WithLabelValues(string(k)).Inc() }

// CacheEvicted implements chartcache.Observer.
func (m *Metrics) CacheEvicted(k chartcache.Kind) { m.CacheEvictions.WithLabelValues(string(k)).Inc() }

// PaintDone implements render.Observer.
func (m *Metrics) PaintDone(d time.Duration) { m.PaintDur.Observe(d.Seconds()) }

// PanelFailed implements render.Observer.
func (m *Metrics) PanelFailed(kind indicator.Kind) {
	m.PanelErrors.WithLabelValues(kind.String()).Inc()
}

// AlignmentFallback implements render.Observer.
func (m *Metrics) AlignmentFallback() { m.AlignmentFallbacks.Inc() }

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastCandleTime time.Time `json:"last_candle_time"`
	HistoryLen     int       `json:"history_len"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// SetHistory records the latest candle time and the history length.
func (h *HealthStatus) SetHistory(last time.Time, n int) {
	h.mu.Lock()
	h.LastCandleTime = last
	h.HistoryLen = n
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint. The chart keeps serving from
// memory without Redis, so only a missing history store is unhealthy.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	switch {
	case !h.SQLiteOK:
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	case !h.RedisConnected:
		overallStatus = "degraded"
	}

	candleAge := ""
	if !h.LastCandleTime.IsZero() {
		candleAge = time.Since(h.LastCandleTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		LastCandleTime  string  `json:"last_candle_time"`
		CandleAge       string  `json:"candle_age"`
		HistoryLen      int     `json:"history_len"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		LastCandleTime:  h.LastCandleTime.Format(time.RFC3339),
		CandleAge:       candleAge,
		HistoryLen:      h.HistoryLen,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", slog.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

// SessionOpened implements api.Observer.
func (m *Metrics) SessionOpened() { m.WSSessions.Inc() }

// SessionClosed implements api.Observer.
func (m *Metrics) SessionClosed() { m.WSSessions.Dec() }

// FrameSent implements api.Observer.
func (m *Metrics) FrameSent() { m.FramesSent.Inc() }

package metrics

import (
	"context"
	"database/sql"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"market-sentinel/internal/model"
)

// Metrics holds the Prometheus collectors of the refresh pipeline and API.
type Metrics struct {
	CycleDuration prometheus.Histogram
	CyclesTotal   *prometheus.CounterVec // labels: result=ok|empty|error
	Snapshots     prometheus.Gauge
	FetchFailures *prometheus.CounterVec // labels: class

	SignalsTotal         *prometheus.CounterVec // labels: classification
	RulesActive          prometheus.Gauge
	NotificationFailures prometheus.Counter

	BacktestsTotal   *prometheus.CounterVec // labels: result=ok|error
	BacktestDuration prometheus.Histogram

	WSClients prometheus.Gauge

	// Circuit breaker on the Redis store
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics creates all collectors and registers them on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_cycle_duration_seconds",
			Help:    "Wall time of one refresh cycle (fetch, evaluate, notify)",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_cycles_total",
			Help: "Refresh cycles run, by result",
		}, []string{"result"}),
		Snapshots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_snapshots",
			Help: "Asset snapshots produced by the latest cycle",
		}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_fetch_failures_total",
			Help: "Failed market-data fetches, by asset class",
		}, []string{"class"}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_signals_total",
			Help: "Signals emitted by fired rules, by classification",
		}, []string{"classification"}),
		RulesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_rules_armed",
			Help: "Rules currently armed (active and not triggered)",
		}),
		NotificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_notification_failures_total",
			Help: "Alerts that at least one notifier failed to deliver",
		}),

		BacktestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_backtests_total",
			Help: "Backtests run, by result",
		}, []string{"result"}),
		BacktestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_backtest_duration_seconds",
			Help:    "Backtest latency including history fetch",
			Buckets: prometheus.DefBuckets,
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_ws_clients",
			Help: "Connected WebSocket clients",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.CycleDuration,
		m.CyclesTotal,
		m.Snapshots,
		m.FetchFailures,
		m.SignalsTotal,
		m.RulesActive,
		m.NotificationFailures,
		m.BacktestsTotal,
		m.BacktestDuration,
		m.WSClients,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)

	return m
}

// ObserveBreaker records a circuit breaker transition; state is 0, 1 or 2.
func (m *Metrics) ObserveBreaker(state int) {
	m.RedisCircuitBreakerState.Set(float64(state))
	if state == 1 {
		m.RedisCircuitBreakerTrips.Inc()
	}
}

// CountFetchFailure fits marketdata.Collector.OnFetchError. The collector
// already logs the failure, so this only counts it by asset class.
func (m *Metrics) CountFetchFailure(asset model.Asset, _ model.Timeframe, _ error) {
	m.FetchFailures.WithLabelValues(string(asset.Class)).Inc()
}

// HealthStatus tracks liveness of the pipeline and its stores.
type HealthStatus struct {
	mu sync.RWMutex

	StoreBackend    string
	LastCycleAt     time.Time
	LastCycleError  string
	Snapshots       int
	RedisConnected  bool
	RedisLatencyMs  float64
	SQLiteOK        bool
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time

	now func() time.Time
}

// HealthReport is the JSON view of HealthStatus.
type HealthReport struct {
	Status          string  `json:"status"`
	Uptime          string  `json:"uptime"`
	StoreBackend    string  `json:"store_backend"`
	LastCycleAt     string  `json:"last_cycle_at,omitempty"`
	CycleAge        string  `json:"cycle_age,omitempty"`
	LastCycleError  string  `json:"last_cycle_error,omitempty"`
	Snapshots       int     `json:"snapshots"`
	RedisConnected  bool    `json:"redis_connected"`
	RedisLatencyMs  float64 `json:"redis_latency_ms"`
	SQLiteOK        bool    `json:"sqlite_ok"`
	SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
}

// NewHealthStatus returns a health status for the given store backend.
func NewHealthStatus(backend string) *HealthStatus {
	return &HealthStatus{
		StoreBackend: backend,
		StartedAt:    time.Now(),
		now:          time.Now,
	}
}

// RecordCycle stores the outcome of a refresh cycle.
func (h *HealthStatus) RecordCycle(at time.Time, snapshots int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastCycleAt = at
	h.Snapshots = snapshots
	h.LastCycleError = ""
	if err != nil {
		h.LastCycleError = err.Error()
	}
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := h.now()
	err := rdb.Ping(ctx).Err()
	latency := h.now().Sub(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := h.now()
	err := db.PingContext(ctx)
	latency := h.now().Sub(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Nil handles are skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	go func() {
		probe()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

// Report summarises health. staleAfter marks the pipeline degraded when no
// cycle completed within that window.
func (h *HealthStatus) Report(staleAfter time.Duration) HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	r := HealthReport{
		Status:          "healthy",
		Uptime:          now.Sub(h.StartedAt).Round(time.Second).String(),
		StoreBackend:    h.StoreBackend,
		LastCycleError:  h.LastCycleError,
		Snapshots:       h.Snapshots,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
	}
	if !h.LastCycleAt.IsZero() {
		r.LastCycleAt = h.LastCycleAt.UTC().Format(time.RFC3339)
		r.CycleAge = now.Sub(h.LastCycleAt).Round(time.Second).String()
	}

	switch h.StoreBackend {
	case "redis":
		if !h.RedisConnected {
			r.Status = "unhealthy"
			return r
		}
	case "sqlite":
		if !h.SQLiteOK {
			r.Status = "unhealthy"
			return r
		}
	}
	if h.LastCycleError != "" || (staleAfter > 0 && !h.LastCycleAt.IsZero() && now.Sub(h.LastCycleAt) > staleAfter) {
		r.Status = "degraded"
	}
	return r
}

// Healthy reports whether the status is anything but unhealthy.
func (r HealthReport) Healthy() bool { return r.Status != "unhealthy" }

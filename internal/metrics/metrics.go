// Package metrics provides Prometheus metrics for the ride search service.
package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Search metrics
	SearchRequests  *prometheus.CounterVec
	SearchDuration  *prometheus.HistogramVec
	SearchResults   *prometheus.CounterVec
	EngineErrors    *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	RateLimitedHits prometheus.Counter

	// Database pool metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	logger *zerolog.Logger

	collectorStarted atomic.Bool
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for collector errors.
func NewWithLogger(logger *zerolog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boleia_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boleia_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boleia_search_requests_total",
			Help: "Ride searches by the strategy that produced the answer",
		}, []string{"strategy", "degraded"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boleia_search_duration_seconds",
			Help:    "Time spent matching and ranking one search",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"strategy"}),
		SearchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boleia_search_results_total",
			Help: "Rides returned by match type",
		}, []string{"match_type"}),
		EngineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boleia_match_engine_errors_total",
			Help: "Matching failures by stage",
		}, []string{"stage"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boleia_search_cache_lookups_total",
			Help: "Search cache lookups by outcome",
		}, []string{"outcome"}),
		RateLimitedHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boleia_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boleia_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boleia_db_connections_in_use",
			Help: "Number of database connections currently acquired",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boleia_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBWaitSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boleia_db_wait_seconds_total",
			Help: "Total time spent acquiring a database connection",
		}),
		logger: logger,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SearchRequests,
		m.SearchDuration,
		m.SearchResults,
		m.EngineErrors,
		m.CacheLookups,
		m.RateLimitedHits,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitSecondsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveSearch(strategy string, degraded bool, elapsed time.Duration) {
	d := "false"
	if degraded {
		d = "true"
	}
	m.SearchRequests.WithLabelValues(strategy, d).Inc()
	m.SearchDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveResults(matchType string, n int) {
	m.SearchResults.WithLabelValues(matchType).Add(float64(n))
}

func (m *Metrics) EngineError(stage string) {
	m.EngineErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) CacheLookup(outcome string) {
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

// StartDBStatsCollector periodically copies pool statistics into the DB
// gauges. Only the first call starts a collector; Shutdown stops it.
func (m *Metrics) StartDBStatsCollector(pool *pgxpool.Pool, interval time.Duration) {
	if pool == nil {
		return
	}
	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	var lastWait time.Duration

	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil && m.logger != nil {
				m.logger.Error().Interface("panic", r).Msg("panic in DB stats collector")
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stat := pool.Stat()
				m.DBConnectionsOpen.Set(float64(stat.TotalConns()))
				m.DBConnectionsInUse.Set(float64(stat.AcquiredConns()))
				m.DBConnectionsIdle.Set(float64(stat.IdleConns()))

				wait := stat.AcquireDuration()
				if delta := wait - lastWait; delta > 0 {
					m.DBWaitSecondsTotal.Add(delta.Seconds())
				}
				lastWait = wait
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the DB stats collector and waits for it to exit.
func (m *Metrics) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

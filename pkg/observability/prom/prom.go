// Package prom implements the observability hooks with Prometheus metrics.
package prom

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/geohistoricaldata/cassinigraph/pkg/observability"
)

// Metrics holds the cassinigraph collectors. It implements every hook
// interface of package observability.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	stageItems    *prometheus.GaugeVec
	methodRuns    *prometheus.CounterVec
	components    *prometheus.GaugeVec
	cacheEvents   *prometheus.CounterVec
	cacheBytes    *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cassinigraph_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"method", "stage"}),
		stageItems: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cassinigraph_stage_items",
			Help: "Items produced by the last run of each stage",
		}, []string{"method", "stage"}),
		methodRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cassinigraph_method_runs_total",
			Help: "Method runs by outcome",
		}, []string{"method", "status"}),
		components: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cassinigraph_components",
			Help: "Components exported by the last successful run of each method",
		}, []string{"method"}),
		cacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cassinigraph_cache_events_total",
			Help: "Cache lookups and writes",
		}, []string{"key_type", "event"}),
		cacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cassinigraph_cache_written_bytes_total",
			Help: "Bytes written to the cache",
		}, []string{"key_type"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cassinigraph_http_request_duration_seconds",
			Help:    "HTTP API latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
}

// Install registers m as the pipeline, cache and HTTP hooks.
func (m *Metrics) Install() {
	observability.SetPipelineHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

func (m *Metrics) OnStageStart(context.Context, string, string) {}

func (m *Metrics) OnStageComplete(_ context.Context, method, stage string, items int, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(method, stage).Observe(d.Seconds())
	if err == nil {
		m.stageItems.WithLabelValues(method, stage).Set(float64(items))
	}
}

func (m *Metrics) OnMethodComplete(_ context.Context, method string, components int, _ time.Duration, err error) {
	if err != nil {
		m.methodRuns.WithLabelValues(method, "error").Inc()
		return
	}
	m.methodRuns.WithLabelValues(method, "ok").Inc()
	m.components.WithLabelValues(method).Set(float64(components))
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheEvents.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (m *Metrics) OnRequest(_ context.Context, method, route string, status int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, httpCode(status)).Observe(d.Seconds())
}

func httpCode(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	}
	return "2xx"
}

var (
	_ observability.PipelineHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.HTTPHooks     = (*Metrics)(nil)
)

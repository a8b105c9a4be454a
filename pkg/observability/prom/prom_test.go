package prom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	ctx := context.Background()

	m.OnStageComplete(ctx, "full", "discover", 42, 10*time.Millisecond, nil)
	m.OnMethodComplete(ctx, "full", 3, time.Second, nil)
	m.OnMethodComplete(ctx, "religion", 0, time.Second, errors.New("export"))
	m.OnCacheMiss(ctx, "features")
	m.OnCacheSet(ctx, "features", 512)
	m.OnCacheHit(ctx, "features")
	m.OnRequest(ctx, "GET", "/methods", 200, time.Millisecond)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.stageItems.WithLabelValues("full", "discover")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.methodRuns.WithLabelValues("full", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.methodRuns.WithLabelValues("religion", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.components.WithLabelValues("full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvents.WithLabelValues("features", "hit")))
	assert.Equal(t, 512.0, testutil.ToFloat64(m.cacheBytes.WithLabelValues("features")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
}

func TestHTTPCode(t *testing.T) {
	for status, want := range map[int]string{200: "2xx", 204: "2xx", 302: "3xx", 400: "4xx", 404: "4xx", 500: "5xx"} {
		assert.Equal(t, want, httpCode(status), "status %d", status)
	}
}

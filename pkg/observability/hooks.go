// Package observability provides hooks for metrics and tracing.
//
// Libraries emit events through the registered hooks; the binary decides
// which backend receives them. Hooks default to no-ops, so packages can be
// used without any observability setup. The Prometheus backend lives in
// [github.com/geohistoricaldata/cassinigraph/pkg/observability/prom].
//
// Register hooks at startup, before any pipeline runs:
//
//	m := prom.New(prometheus.DefaultRegisterer)
//	observability.SetPipelineHooks(m)
//	observability.SetCacheHooks(m)
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnStageStart(ctx, "full", "reduce")
//	// ... reduce ...
//	observability.Pipeline().OnStageComplete(ctx, "full", "reduce", len(edges), time.Since(start), nil)
package observability

import (
	"context"
	"sync"
	"time"
)

// PipelineHooks receives events from pipeline runs.
type PipelineHooks interface {
	// OnStageStart is called before a stage of a method runs.
	OnStageStart(ctx context.Context, method, stage string)

	// OnStageComplete is called after a stage, with the number of items it
	// produced (nodes, candidates, edges, components or records).
	OnStageComplete(ctx context.Context, method, stage string, items int, duration time.Duration, err error)

	// OnMethodComplete is called once per method run.
	OnMethodComplete(ctx context.Context, method string, components int, duration time.Duration, err error)
}

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives events from the HTTP API.
type HTTPHooks interface {
	// OnRequest records a served request. route is the matched pattern, not
	// the raw path.
	OnRequest(ctx context.Context, method, route string, status int, duration time.Duration)
}

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnStageStart(context.Context, string, string) {}
func (NoopPipelineHooks) OnStageComplete(context.Context, string, string, int, time.Duration, error) {
}
func (NoopPipelineHooks) OnMethodComplete(context.Context, string, int, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, int, time.Duration) {}

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers pipeline hooks. A nil h is ignored.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers cache hooks. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers HTTP hooks. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}

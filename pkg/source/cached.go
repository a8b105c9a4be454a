package source

import (
	"context"
	"encoding/json"
	"time"

	"github.com/geohistoricaldata/cassinigraph/pkg/cache"
	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
	"github.com/geohistoricaldata/cassinigraph/pkg/method"
	"github.com/geohistoricaldata/cassinigraph/pkg/observability"
)

// CacheOptions configures [Cached].
type CacheOptions struct {
	Keyer   cache.Keyer   // defaults to cache.NewDefaultKeyer()
	TTL     time.Duration // defaults to cache.FeatureTTL
	Refresh bool          // skip reads, still write fresh results

	// Scope keeps this dataset's entries apart from other datasets of the
	// same source kind. Defaults to the wrapped source's [Scoper.Scope].
	Scope string
}

// scopeLen is the number of hex digits of a scope used in keys.
const scopeLen = 16

// Cached serves query results from a cache and falls back to the wrapped
// source on a miss. Cache failures never fail a query.
type Cached struct {
	inner FeatureSource
	cache cache.Cache
	opts  CacheOptions
}

// NewCached wraps inner with c.
func NewCached(inner FeatureSource, c cache.Cache, opts CacheOptions) *Cached {
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.TTL <= 0 {
		opts.TTL = cache.FeatureTTL
	}
	if opts.Scope == "" {
		if s, ok := inner.(Scoper); ok {
			opts.Scope = s.Scope()
		}
	}
	if opts.Scope != "" {
		opts.Keyer = cache.NewScopedKeyer(opts.Keyer, scopePrefix(opts.Scope))
	}
	return &Cached{inner: inner, cache: c, opts: opts}
}

// Name returns the wrapped source's name.
func (c *Cached) Name() string { return c.inner.Name() }

// Close closes the wrapped source if it holds resources.
func (c *Cached) Close() error {
	if cl, ok := c.inner.(Closer); ok {
		return cl.Close()
	}
	return nil
}

// Query returns cached nodes for (source, predicate, region) or queries the
// wrapped source and caches its answer.
func (c *Cached) Query(ctx context.Context, pred method.Predicate, region geo.Region) ([]geo.Node, error) {
	key := c.opts.Keyer.FeatureKey(c.inner.Name(), cache.FeatureKeyOpts{
		Predicate: pred.Key(),
		Region:    regionKey(region),
	})
	return cachedCall(ctx, c, "features", key, c.opts.TTL, func() ([]geo.Node, error) {
		return c.inner.Query(ctx, pred, region)
	})
}

// Cells is like Query for cell links. The wrapped source must implement
// [CellSource].
func (c *Cached) Cells(ctx context.Context, pred method.Predicate, region geo.Region) ([]CellLink, error) {
	cs, ok := c.inner.(CellSource)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "source %s has no cells", c.inner.Name())
	}
	key := c.opts.Keyer.CellKey(c.inner.Name(), pred.Key()+"|"+regionKey(region))
	return cachedCall(ctx, c, "cells", key, cache.CellTTL, func() ([]CellLink, error) {
		return cs.Cells(ctx, pred, region)
	})
}

func cachedCall[T any](ctx context.Context, c *Cached, keyType, key string, ttl time.Duration, fetch func() ([]T, error)) ([]T, error) {
	hooks := observability.Cache()
	if !c.opts.Refresh {
		if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			var out []T
			if err := json.Unmarshal(data, &out); err == nil {
				hooks.OnCacheHit(ctx, keyType)
				return out, nil
			}
		}
	}
	hooks.OnCacheMiss(ctx, keyType)

	out, err := fetch()
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(out); err == nil {
		if c.cache.Set(ctx, key, data, ttl) == nil {
			hooks.OnCacheSet(ctx, keyType, len(data))
		}
	}
	return out, nil
}

func scopePrefix(scope string) string {
	if len(scope) > scopeLen {
		scope = scope[:scopeLen]
	}
	return scope + ":"
}

func regionKey(r geo.Region) string {
	if r.IsZero() {
		return ""
	}
	return r.EWKT()
}

var (
	_ FeatureSource = (*Cached)(nil)
	_ CellSource    = (*Cached)(nil)
)

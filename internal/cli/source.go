package cli

import (
	"context"
	stderrors "errors"

	"github.com/geohistoricaldata/cassinigraph/pkg/cache"
	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
	"github.com/geohistoricaldata/cassinigraph/pkg/source"
)

// openSource opens the feature source selected by the global flags, behind
// the feature cache. The returned function releases both.
func (c *CLI) openSource(ctx context.Context) (source.FeatureSource, func() error, error) {
	var src source.FeatureSource
	switch {
	case c.flags.sqlite != "":
		s, err := source.OpenSQLite(c.flags.sqlite)
		if err != nil {
			return nil, nil, err
		}
		src = s
	case c.flags.dsn != "":
		spinner := newSpinnerWithContext(ctx, "Connecting to PostGIS...")
		spinner.Start()
		s, err := source.OpenPostGIS(ctx, c.flags.dsn, source.DefaultTables)
		canceled := spinner.Cancelled()
		spinner.Stop()
		if err != nil {
			if canceled {
				return nil, nil, errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "connect to PostGIS")
			}
			return nil, nil, err
		}
		src = s
	default:
		return nil, nil, errors.New(errors.ErrCodeInvalidConfig,
			"no feature source: set --dsn (or %s) or --sqlite", envDSN)
	}
	c.Logger.Debug("opened source", "source", src.Name())

	ch, err := c.openCache(ctx)
	if err != nil {
		closeSource(src)
		return nil, nil, err
	}
	if _, ok := ch.(*cache.NullCache); ok {
		return src, func() error { return closeSource(src) }, nil
	}

	cached := source.NewCached(src, ch, source.CacheOptions{Refresh: c.flags.refresh})
	release := func() error {
		return stderrors.Join(cached.Close(), ch.Close())
	}
	return cached, release, nil
}

func closeSource(src source.FeatureSource) error {
	if cl, ok := src.(source.Closer); ok {
		return cl.Close()
	}
	return nil
}

// openCache opens the backend selected by --cache.
func (c *CLI) openCache(ctx context.Context) (cache.Cache, error) {
	switch c.flags.cache {
	case cacheNone:
		return cache.NewNullCache(), nil
	case cacheFile, "":
		dir, err := cacheDir()
		if err != nil {
			c.Logger.Warn("no cache directory, caching disabled", "err", err)
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(dir)
	case cacheRedis:
		return cache.NewRedisCache(ctx, c.flags.redisURL, cache.DefaultRedisPrefix)
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig,
		"unknown cache backend %q (must be one of: %s, %s, %s)", c.flags.cache, cacheFile, cacheRedis, cacheNone)
}

package cache

// Keyer builds cache keys.
type Keyer interface {
	// FeatureKey keys the node list returned by a feature query.
	FeatureKey(source string, opts FeatureKeyOpts) string

	// CellKey keys the cell links returned for a region.
	CellKey(source, region string) string
}

// FeatureKeyOpts holds the query parameters that select a node list.
type FeatureKeyOpts struct {
	Predicate string `json:"predicate"`
	Region    string `json:"region"`
}

// DefaultKeyer produces keys of the form "<kind>:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// FeatureKey returns "features:<hash>".
func (DefaultKeyer) FeatureKey(source string, opts FeatureKeyOpts) string {
	return hashKey("features", source, opts)
}

// CellKey returns "cells:<hash>".
func (DefaultKeyer) CellKey(source, region string) string {
	return hashKey("cells", source, region)
}

// ScopedKeyer prefixes every key of an inner Keyer, so that several
// datasets can share one Redis database.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "sheet52:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer means
// [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// FeatureKey returns the prefixed feature key.
func (k *ScopedKeyer) FeatureKey(source string, opts FeatureKeyOpts) string {
	return k.prefix + k.inner.FeatureKey(source, opts)
}

// CellKey returns the prefixed cell key.
func (k *ScopedKeyer) CellKey(source, region string) string {
	return k.prefix + k.inner.CellKey(source, region)
}

// Package method defines the table of generation methods.
//
// A method is one instance of the pipeline, parameterized by the predicate
// that selects its nodes. Proximity methods (full, settlement, religion) run
// the graph reduction and need a distance threshold; the cell method
// (parishes) is a pass-through export of precomputed hamlet-to-seat links.
//
// Features come from two Cassini layers: toponyms, typed by an integer
// type id, and chefs-lieux (parish seats), typed by a cartographic label
// such as "abbaye". A node's category is written "<layer>:<type>", for
// example "toponym:10" or "cheflieu:abbaye".
package method

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
)

// Kind selects the pipeline variant a method runs.
type Kind string

const (
	// KindProximity builds a proximity graph and exports its spanning forest.
	KindProximity Kind = "proximity"
	// KindCells exports hamlet-to-cell-seat links without a graph stage.
	KindCells Kind = "cells"
)

// Layer names as they appear in node categories.
const (
	LayerToponym  = "toponym"
	LayerChefLieu = "cheflieu"
)

// Toponym type ids referenced by the built-in methods.
const (
	TypeClocher = 1
	TypeAutre   = 28
)

// Method is one entry of the method table.
type Method struct {
	Name        string    `toml:"-"`
	Description string    `toml:"description"`
	Kind        Kind      `toml:"kind"`
	Predicate   Predicate `toml:"predicate"`
}

// NeedsThreshold reports whether the method requires a distance threshold.
func (m Method) NeedsThreshold() bool { return m.Kind == KindProximity }

// Attribute returns the name of the integer attribute written with each
// exported record.
func (m Method) Attribute() string {
	if m.Kind == KindCells {
		return "cell"
	}
	return "component"
}

// Validate checks the method definition.
func (m Method) Validate() error {
	if err := errors.ValidateMethodName(m.Name); err != nil {
		return err
	}
	switch m.Kind {
	case KindProximity, KindCells:
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "method %q: unknown kind %q", m.Name, m.Kind)
	}
	return m.Predicate.validate(m.Name)
}

// clone returns a copy of m that shares no slices with it.
func (m Method) clone() Method {
	m.Predicate.Toponyms.Include = slices.Clone(m.Predicate.Toponyms.Include)
	m.Predicate.Toponyms.Exclude = slices.Clone(m.Predicate.Toponyms.Exclude)
	m.Predicate.ChefsLieux.Include = slices.Clone(m.Predicate.ChefsLieux.Include)
	m.Predicate.ChefsLieux.Exclude = slices.Clone(m.Predicate.ChefsLieux.Exclude)
	return m
}

// Predicate selects the features of a method.
type Predicate struct {
	Toponyms   TypeFilter  `toml:"toponyms" json:"toponyms"`
	ChefsLieux LabelFilter `toml:"chefs_lieux" json:"chefs_lieux"`
}

// TypeFilter selects toponyms by type id. An empty Include admits every type.
type TypeFilter struct {
	Skip    bool  `toml:"skip" json:"skip,omitempty"`
	Include []int `toml:"include" json:"include,omitempty"`
	Exclude []int `toml:"exclude" json:"exclude,omitempty"`
}

// Match reports whether a toponym of type t is selected.
func (f TypeFilter) Match(t int) bool {
	if f.Skip || slices.Contains(f.Exclude, t) {
		return false
	}
	return len(f.Include) == 0 || slices.Contains(f.Include, t)
}

// LabelFilter selects chefs-lieux by cartographic type label. An empty Include
// admits every label.
type LabelFilter struct {
	Skip    bool     `toml:"skip" json:"skip,omitempty"`
	Include []string `toml:"include" json:"include,omitempty"`
	Exclude []string `toml:"exclude" json:"exclude,omitempty"`
}

// Match reports whether a chef-lieu labelled l is selected.
func (f LabelFilter) Match(l string) bool {
	if f.Skip || slices.Contains(f.Exclude, l) {
		return false
	}
	return len(f.Include) == 0 || slices.Contains(f.Include, l)
}

// Match reports whether a node of the given category is selected.
// Unknown layers and malformed categories never match.
func (p Predicate) Match(category string) bool {
	layer, typ, ok := strings.Cut(category, ":")
	if !ok {
		return false
	}
	switch layer {
	case LayerToponym:
		t, err := strconv.Atoi(typ)
		return err == nil && p.Toponyms.Match(t)
	case LayerChefLieu:
		return p.ChefsLieux.Match(typ)
	}
	return false
}

// Key returns a stable textual form of the predicate, used in cache keys.
func (p Predicate) Key() string {
	ints := func(xs []int) string {
		s := slices.Clone(xs)
		slices.Sort(s)
		return fmt.Sprint(s)
	}
	strs := func(xs []string) string {
		s := slices.Clone(xs)
		slices.Sort(s)
		return fmt.Sprint(s)
	}
	return fmt.Sprintf("toponyms{skip=%t in=%s ex=%s} chefs_lieux{skip=%t in=%s ex=%s}",
		p.Toponyms.Skip, ints(p.Toponyms.Include), ints(p.Toponyms.Exclude),
		p.ChefsLieux.Skip, strs(p.ChefsLieux.Include), strs(p.ChefsLieux.Exclude))
}

func (p Predicate) validate(name string) error {
	if p.Toponyms.Skip && p.ChefsLieux.Skip {
		return errors.New(errors.ErrCodeInvalidConfig, "method %q selects no layer", name)
	}
	return nil
}

// Category formats a node category.
func Category(layer, typ string) string { return layer + ":" + typ }

// ToponymCategory formats the category of a toponym of type t.
func ToponymCategory(t int) string { return Category(LayerToponym, strconv.Itoa(t)) }

// ChefLieuCategory formats the category of a chef-lieu labelled l.
func ChefLieuCategory(l string) string { return Category(LayerChefLieu, l) }

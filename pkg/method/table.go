package method

import (
	"slices"
	"strings"

	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
)

// Table is an ordered set of methods keyed by name.
type Table struct {
	methods map[string]Method
	order   []string
}

// NewTable creates a table from methods, in order. Later entries replace
// earlier ones with the same name.
func NewTable(methods ...Method) (*Table, error) {
	t := &Table{methods: make(map[string]Method)}
	for _, m := range methods {
		if err := t.Set(m); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Default returns the built-in table: full, parishes, settlement, religion.
func Default() *Table {
	t, err := NewTable(
		Method{
			Name:        "full",
			Description: "All toponyms except 'autre' and 'clocher', plus every chef-lieu",
			Kind:        KindProximity,
			Predicate: Predicate{
				Toponyms: TypeFilter{Exclude: []int{TypeAutre, TypeClocher}},
			},
		},
		Method{
			Name:        "parishes",
			Description: "Hamlets linked to the seat of the parish cell that contains them",
			Kind:        KindCells,
			Predicate: Predicate{
				Toponyms:   TypeFilter{Include: []int{10}},
				ChefsLieux: LabelFilter{Skip: true},
			},
		},
		Method{
			Name:        "settlement",
			Description: "Inhabited places (hamlets, castles, houses, manors) and every chef-lieu",
			Kind:        KindProximity,
			Predicate: Predicate{
				Toponyms: TypeFilter{Include: []int{10, 11, 12, 13}},
			},
		},
		Method{
			Name:        "religion",
			Description: "Religious places (chapels, calvaries, cemeteries...) and abbeys and priories",
			Kind:        KindProximity,
			Predicate: Predicate{
				Toponyms:   TypeFilter{Include: []int{3, 5, 6, 7, 9}},
				ChefsLieux: LabelFilter{Include: []string{"abbaye", "prieuré"}},
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// Set validates m and adds or replaces it.
func (t *Table) Set(m Method) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if _, ok := t.methods[m.Name]; !ok {
		t.order = append(t.order, m.Name)
	}
	t.methods[m.Name] = m
	return nil
}

// Lookup returns the method called name.
func (t *Table) Lookup(name string) (Method, error) {
	m, ok := t.methods[name]
	if !ok {
		return Method{}, errors.New(errors.ErrCodeUnknownMethod,
			"invalid method: %s (available methods are: %s)", name, strings.Join(t.order, ", "))
	}
	return m, nil
}

// Names returns the method names in table order.
func (t *Table) Names() []string { return slices.Clone(t.order) }

// Methods returns the methods in table order.
func (t *Table) Methods() []Method {
	out := make([]Method, len(t.order))
	for i, name := range t.order {
		out[i] = t.methods[name]
	}
	return out
}

// Resolve maps requested names to methods, keeping the request order and
// dropping repeats. Each argument may hold several comma-separated names.
// The first unknown name fails the whole request.
func (t *Table) Resolve(requested []string) ([]Method, error) {
	var out []Method
	seen := make(map[string]bool)
	for _, arg := range requested {
		for _, name := range strings.Split(arg, ",") {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			m, err := t.Lookup(name)
			if err != nil {
				return nil, err
			}
			seen[name] = true
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeUnknownMethod,
			"no method given (available methods are: %s)", strings.Join(t.order, ", "))
	}
	return out, nil
}

// NeedsThreshold reports whether any of methods requires a threshold.
func NeedsThreshold(methods []Method) bool {
	return slices.ContainsFunc(methods, Method.NeedsThreshold)
}

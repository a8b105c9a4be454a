package method

import (
	"io"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
)

// Config is the content of a cassinigraph configuration file.
//
//	threshold = 800.0
//	region = "SRID=2154;POLYGON((...))"
//
//	[methods.settlement.predicate.toponyms]
//	include = [10, 11]
//
//	[methods.mills]
//	description = "Water and wind mills"
//	kind = "proximity"
//	predicate.toponyms.include = [20, 21]
//	predicate.chefs_lieux.skip = true
//
// A [methods.<name>] entry for an existing method is merged into it: only the
// keys present in the file change. Other entries add new methods, in name
// order, after the existing ones.
type Config struct {
	Threshold float64  `toml:"threshold"`
	Region    string   `toml:"region"`
	Workers   int      `toml:"workers"`
	OutputDir string   `toml:"output"`
	Formats   []string `toml:"formats"`

	// Table is the resulting method table.
	Table *Table `toml:"-"`
}

type rawConfig struct {
	Threshold float64                   `toml:"threshold"`
	Region    string                    `toml:"region"`
	Workers   int                       `toml:"workers"`
	OutputDir string                    `toml:"output"`
	Formats   []string                  `toml:"formats"`
	Methods   map[string]toml.Primitive `toml:"methods"`
}

// LoadFile reads a configuration file and applies its methods on top of base.
// A nil base means [Default].
func LoadFile(path string, base *Table) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open config")
	}
	defer f.Close()
	return Load(f, base)
}

// Load decodes a configuration from r and applies its methods on top of base.
// Unknown keys are rejected.
func Load(r io.Reader, base *Table) (*Config, error) {
	if base == nil {
		base = Default()
	}

	var raw rawConfig
	md, err := toml.NewDecoder(r).Decode(&raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}

	tbl, err := NewTable(base.Methods()...)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(raw.Methods))
	for name := range raw.Methods {
		names = append(names, name)
	}
	// Existing methods first, so that overrides never reorder the table.
	slices.SortFunc(names, func(a, b string) int {
		ia, ib := slices.Index(base.order, a), slices.Index(base.order, b)
		switch {
		case ia >= 0 && ib >= 0:
			return ia - ib
		case ia >= 0:
			return -1
		case ib >= 0:
			return 1
		}
		return strings.Compare(a, b)
	})

	for _, name := range names {
		m, ok := tbl.methods[name]
		if ok {
			m = m.clone()
		} else {
			m = Method{Kind: KindProximity}
		}
		if err := md.PrimitiveDecode(raw.Methods[name], &m); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "method %q", name)
		}
		m.Name = name
		if err := tbl.Set(m); err != nil {
			return nil, err
		}
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown config keys: %s", strings.Join(keys, ", "))
	}

	if raw.Threshold != 0 {
		if err := errors.ValidateThreshold(raw.Threshold); err != nil {
			return nil, err
		}
	}

	return &Config{
		Threshold: raw.Threshold,
		Region:    raw.Region,
		Workers:   raw.Workers,
		OutputDir: raw.OutputDir,
		Formats:   raw.Formats,
		Table:     tbl,
	}, nil
}

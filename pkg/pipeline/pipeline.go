// Package pipeline runs generation methods end to end.
//
// This package implements the complete ingest → export pipeline that is
// shared by the CLI and the HTTP service, so that both produce the same
// components from the same inputs.
//
// # Architecture
//
// A proximity method runs six stages:
//
//  1. Ingest: query the feature source with the method predicate
//  2. Discover: find every pair of nodes within the distance threshold
//  3. Build: deduplicate candidates into an undirected weighted graph
//  4. Reduce: keep a minimum spanning forest (Kruskal)
//  5. Extract: number the connected components of the forest
//  6. Export: write one record per component to the sink
//
// A cell method (parishes) skips stages 2 to 5: it ingests hamlet-to-seat
// links from a [source.CellSource] and exports one record per link.
//
// # Usage
//
//	runner := pipeline.NewRunner(src, sinks, logger)
//	results, err := runner.RunAll(ctx, methods, pipeline.Options{
//	    Threshold: 800,
//	    Formats:   []export.Format{export.FormatShapefile},
//	})
package pipeline

import (
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
	"github.com/geohistoricaldata/cassinigraph/pkg/export"
	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
	"github.com/geohistoricaldata/cassinigraph/pkg/method"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and HTTP service
// =============================================================================

const (
	// DefaultOutputDir is where file formats are written.
	DefaultOutputDir = "output"

	// DefaultSRID is the spatial reference of the Cassini layers (Lambert-93).
	DefaultSRID = 2154
)

// DefaultFormats is the output used when no format is given.
var DefaultFormats = []export.Format{export.FormatShapefile}

// Stage names, as passed to observability hooks and logs.
const (
	StageIngest   = "ingest"
	StageDiscover = "discover"
	StageBuild    = "build"
	StageReduce   = "reduce"
	StageExtract  = "extract"
	StageExport   = "export"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains the configuration shared by every method of a run.
type Options struct {
	// Threshold is the maximum distance, in metres, between two linked
	// nodes. Required by proximity methods.
	Threshold float64 `json:"threshold,omitempty"`

	// Region bounds the feature query. The zero Region is unbounded; the
	// CLI defaults it to geo.DefaultRegion().
	Region geo.Region `json:"-"`

	// Output options
	OutputDir string          `json:"output_dir,omitempty"`
	Formats   []export.Format `json:"formats,omitempty"`

	// Workers bounds concurrent neighbor queries. Defaults to GOMAXPROCS.
	Workers int `json:"workers,omitempty"`

	// Timeout bounds neighbor discovery. Zero means no bound.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether Validate has succeeded.
	validated bool
}

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	if len(o.Formats) == 0 {
		o.Formats = DefaultFormats
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate applies defaults and checks the options against the methods that
// will run. A threshold is required only when one of them needs it.
// This method is idempotent.
func (o *Options) Validate(methods []method.Method) error {
	if o.validated {
		return nil
	}
	o.SetDefaults()
	if method.NeedsThreshold(methods) {
		if o.Threshold == 0 {
			return errors.New(errors.ErrCodeInvalidThreshold,
				"a distance threshold is required by %s", strings.Join(thresholdMethods(methods), ", "))
		}
		if err := errors.ValidateThreshold(o.Threshold); err != nil {
			return err
		}
	}
	if err := errors.ValidatePath(o.OutputDir); err != nil {
		return err
	}
	if o.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "timeout must not be negative, got %v", o.Timeout)
	}
	for _, f := range o.Formats {
		if _, err := export.ParseFormats(string(f)); err != nil {
			return err
		}
	}
	o.validated = true
	return nil
}

func thresholdMethods(methods []method.Method) []string {
	var names []string
	for _, m := range methods {
		if m.NeedsThreshold() {
			names = append(names, m.Name)
		}
	}
	return names
}

// Layer returns the export layer of m under these options.
func (o *Options) Layer(m method.Method) export.Layer {
	srid := o.Region.SRID
	if srid == 0 {
		srid = DefaultSRID
	}
	return export.Layer{Name: m.Name, Attribute: m.Attribute(), SRID: srid}
}

// =============================================================================
// Results
// =============================================================================

// Result is the outcome of one method.
type Result struct {
	// Method is the method that ran.
	Method method.Method

	// RunID identifies the run in logs.
	RunID string

	// Records holds what was written to the sink, in write order.
	Records []export.Record

	// Stats contains timing and size information.
	Stats Stats

	// Err is the failure of this method, if any.
	Err error
}

// OK reports whether the method succeeded.
func (r *Result) OK() bool { return r.Err == nil }

// Stats contains per-method execution statistics.
type Stats struct {
	Nodes           int // nodes ingested
	Candidates      int // directed candidate edges discovered
	Edges           int // graph edges after deduplication
	Duplicates      int // candidates dropped as duplicates
	Inconsistencies int // duplicates whose weight differed
	ForestEdges     int
	Components      int
	Isolated        int // vertices left out of every component
	Links           int // cell links, for cell methods
	Weight          float64

	IngestTime   time.Duration
	DiscoverTime time.Duration
	BuildTime    time.Duration
	ReduceTime   time.Duration
	ExtractTime  time.Duration
	ExportTime   time.Duration
}

// Total returns the summed stage durations.
func (s Stats) Total() time.Duration {
	return s.IngestTime + s.DiscoverTime + s.BuildTime + s.ReduceTime + s.ExtractTime + s.ExportTime
}

package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
	"github.com/geohistoricaldata/cassinigraph/pkg/export"
	"github.com/geohistoricaldata/cassinigraph/pkg/forest"
	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
	"github.com/geohistoricaldata/cassinigraph/pkg/graph"
	"github.com/geohistoricaldata/cassinigraph/pkg/method"
	"github.com/geohistoricaldata/cassinigraph/pkg/observability"
	"github.com/geohistoricaldata/cassinigraph/pkg/proximity"
	"github.com/geohistoricaldata/cassinigraph/pkg/source"
)

// SinkFactory opens the sink a method exports to.
type SinkFactory func(layer export.Layer, opts *Options) (export.Sink, error)

// ExportSinks returns a factory writing opts.Formats under opts.OutputDir.
// db is only needed for the mongo format.
func ExportSinks(db *mongo.Database) SinkFactory {
	return func(layer export.Layer, opts *Options) (export.Sink, error) {
		return export.Open(export.Target{Dir: opts.OutputDir, Mongo: db}, layer, opts.Formats)
	}
}

// Runner executes methods against one feature source.
//
// The Runner is stateless except for its source, sink factory and logger:
// every method run owns its graph and forest. Multiple goroutines can safely
// use the same Runner if the source and sinks allow it.
type Runner struct {
	Source source.FeatureSource
	Sinks  SinkFactory // nil keeps records in the Result only
	Logger *log.Logger
}

// NewRunner creates a runner.
// If logger is nil, log.Default() is used.
func NewRunner(src source.FeatureSource, sinks SinkFactory, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Source: src,
		Sinks:  sinks,
		Logger: logger,
	}
}

// RunAll runs methods sequentially. Invalid options fail the whole call
// before any stage runs. Otherwise every method gets a Result, a failing
// method does not stop the following ones, and the returned error joins
// every method failure.
func (r *Runner) RunAll(ctx context.Context, methods []method.Method, opts Options) ([]*Result, error) {
	r.applyLogger(&opts)
	if err := opts.Validate(methods); err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(methods))
	var errs []error
	for _, m := range methods {
		res := r.run(ctx, m, &opts)
		results = append(results, res)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name, res.Err))
		}
	}
	return results, stderrors.Join(errs...)
}

// Run runs a single method.
func (r *Runner) Run(ctx context.Context, m method.Method, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.Validate([]method.Method{m}); err != nil {
		return nil, err
	}
	res := r.run(ctx, m, &opts)
	return res, res.Err
}

func (r *Runner) run(ctx context.Context, m method.Method, opts *Options) *Result {
	res := &Result{Method: m, RunID: uuid.NewString()}
	logger := opts.Logger.With("run", res.RunID, "method", m.Name)

	start := time.Now()
	if m.Kind == method.KindCells {
		res.Err = r.runCells(ctx, m, opts, logger, res)
	} else {
		res.Err = r.runProximity(ctx, m, opts, logger, res)
	}
	elapsed := time.Since(start)

	observability.Pipeline().OnMethodComplete(ctx, m.Name, res.Stats.Components, elapsed, res.Err)
	if res.Err != nil {
		logger.Error("method failed", "err", res.Err)
	} else {
		logger.Info("method complete", "components", res.Stats.Components, "duration", elapsed)
	}
	return res
}

func (r *Runner) runProximity(ctx context.Context, m method.Method, opts *Options, logger *log.Logger, res *Result) error {
	st := &res.Stats

	// Stage 1: Ingest
	var nodes []geo.Node
	err := stage(ctx, m.Name, StageIngest, logger, &st.IngestTime, func() (int, error) {
		var err error
		nodes, err = r.Source.Query(ctx, m.Predicate, opts.Region)
		if err != nil {
			return 0, sourceErr(err)
		}
		return len(nodes), nil
	})
	if err != nil {
		return err
	}
	st.Nodes = len(nodes)
	logger.Info("ingested features",
		"nodes", st.Nodes,
		"duration", st.IngestTime)

	// Stage 2: Discover
	var candidates []proximity.Candidate
	err = stage(ctx, m.Name, StageDiscover, logger, &st.DiscoverTime, func() (int, error) {
		dctx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			dctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		var err error
		candidates, err = proximity.Candidates(dctx, nodes, opts.Threshold, proximity.Options{Workers: opts.Workers})
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeCanceled, err, "neighbor discovery aborted")
		}
		return len(candidates), nil
	})
	if err != nil {
		return err
	}
	st.Candidates = len(candidates)
	logger.Info("discovered neighbors",
		"candidates", st.Candidates,
		"threshold", opts.Threshold,
		"duration", st.DiscoverTime)

	// Stage 3: Build
	var g *graph.Graph
	err = stage(ctx, m.Name, StageBuild, logger, &st.BuildTime, func() (int, error) {
		b := graph.NewBuilder(graph.Options{
			OnInconsistency: func(inc graph.Inconsistency) {
				logger.Warn("edge weight inconsistency",
					"a", inc.A, "b", inc.B,
					"kept", inc.Kept, "ignored", inc.Ignored)
			},
		})
		for _, n := range nodes {
			b.AddVertex(n)
		}
		for _, c := range candidates {
			b.AddEdge(c.From, c.To, c.Distance)
		}
		g = b.Build()
		st.Duplicates = b.Duplicates()
		st.Inconsistencies = b.Inconsistencies()
		return g.EdgeCount(), nil
	})
	if err != nil {
		return err
	}
	st.Edges = g.EdgeCount()
	logger.Info("built graph",
		"vertices", g.VertexCount(),
		"edges", st.Edges,
		"duplicates", st.Duplicates,
		"duration", st.BuildTime)

	// Stage 4: Reduce
	var f *forest.Forest
	err = stage(ctx, m.Name, StageReduce, logger, &st.ReduceTime, func() (int, error) {
		f = forest.Reduce(g)
		return len(f.Edges()), nil
	})
	if err != nil {
		return err
	}
	st.ForestEdges = len(f.Edges())
	st.Weight = f.TotalWeight()
	logger.Info("reduced forest",
		"forest_edges", st.ForestEdges,
		"weight", st.Weight,
		"duration", st.ReduceTime)

	// Stage 5: Extract
	var comps []forest.Component
	err = stage(ctx, m.Name, StageExtract, logger, &st.ExtractTime, func() (int, error) {
		comps = f.Components()
		st.Isolated = len(f.Isolated())
		return len(comps), nil
	})
	if err != nil {
		return err
	}
	st.Components = len(comps)
	logger.Info("extracted components",
		"components", st.Components,
		"isolated", st.Isolated,
		"duration", st.ExtractTime)

	// Stage 6: Export
	res.Records = Records(g, comps)
	return r.export(ctx, m, opts, logger, res)
}

func (r *Runner) runCells(ctx context.Context, m method.Method, opts *Options, logger *log.Logger, res *Result) error {
	st := &res.Stats
	cs, ok := r.Source.(source.CellSource)
	if !ok {
		return errors.New(errors.ErrCodeUnsupported, "source %s has no cells for method %s", r.Source.Name(), m.Name)
	}

	var links []source.CellLink
	err := stage(ctx, m.Name, StageIngest, logger, &st.IngestTime, func() (int, error) {
		var err error
		links, err = cs.Cells(ctx, m.Predicate, opts.Region)
		if err != nil {
			return 0, sourceErr(err)
		}
		return len(links), nil
	})
	if err != nil {
		return err
	}
	st.Links = len(links)
	st.Nodes = len(links)
	res.Records = CellRecords(links)
	st.Components = countCells(links)
	logger.Info("ingested cell links",
		"links", st.Links,
		"cells", st.Components,
		"duration", st.IngestTime)

	return r.export(ctx, m, opts, logger, res)
}

func (r *Runner) export(ctx context.Context, m method.Method, opts *Options, logger *log.Logger, res *Result) error {
	st := &res.Stats
	if r.Sinks == nil {
		return nil
	}
	err := stage(ctx, m.Name, StageExport, logger, &st.ExportTime, func() (int, error) {
		sink, err := r.Sinks(opts.Layer(m), opts)
		if err != nil {
			return 0, err
		}
		for _, rec := range res.Records {
			if err := sink.Write(ctx, rec.ID, rec.Segments); err != nil {
				return 0, exportErr(err)
			}
		}
		if err := sink.Finalize(ctx); err != nil {
			return 0, exportErr(err)
		}
		return len(res.Records), nil
	})
	if err != nil {
		return err
	}
	logger.Info("exported records",
		"records", len(res.Records),
		"formats", opts.Formats,
		"duration", st.ExportTime)
	return nil
}

// stage runs fn as the named stage of a method, timing it into elapsed and
// reporting it to the pipeline hooks. fn returns how many items it produced.
func stage(ctx context.Context, m, name string, logger *log.Logger, elapsed *time.Duration, fn func() (int, error)) error {
	hooks := observability.Pipeline()
	hooks.OnStageStart(ctx, m, name)
	logger.Debug("stage started", "stage", name)

	start := time.Now()
	n, err := fn()
	*elapsed = time.Since(start)

	hooks.OnStageComplete(ctx, m, name, n, *elapsed, err)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Records converts components to export records. Segments follow the
// component's edge order and run from the smaller vertex id to the larger.
func Records(g *graph.Graph, comps []forest.Component) []export.Record {
	out := make([]export.Record, len(comps))
	for i, c := range comps {
		segs := make([]export.Segment, len(c.Edges))
		for j, e := range c.Edges {
			a, _ := g.Vertex(e.A)
			b, _ := g.Vertex(e.B)
			segs[j] = export.Segment{From: a.Loc, To: b.Loc}
		}
		out[i] = export.Record{ID: c.ID, Segments: segs}
	}
	return out
}

// CellRecords converts cell links to export records, one per link, with a
// single segment from the feature to its cell seat.
func CellRecords(links []source.CellLink) []export.Record {
	out := make([]export.Record, len(links))
	for i, l := range links {
		out[i] = export.Record{
			ID:       l.Cell,
			Segments: []export.Segment{{From: l.Node.Loc, To: l.Seat}},
		}
	}
	return out
}

func countCells(links []source.CellLink) int {
	seen := make(map[int]struct{})
	for _, l := range links {
		seen[l.Cell] = struct{}{}
	}
	return len(seen)
}

func sourceErr(err error) error {
	switch {
	case errors.GetCode(err) != "":
		return err
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeCanceled, err, "feature query aborted")
	}
	return errors.Wrap(errors.ErrCodeSource, err, "feature query failed")
}

func exportErr(err error) error {
	if errors.GetCode(err) != "" {
		return err
	}
	return errors.Wrap(errors.ErrCodeExport, err, "export failed")
}

// Close releases the source if it holds resources.
func (r *Runner) Close() error {
	if c, ok := r.Source.(source.Closer); ok {
		return c.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

package cli

import (
	"context"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
	"github.com/geohistoricaldata/cassinigraph/pkg/export"
	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
	"github.com/geohistoricaldata/cassinigraph/pkg/method"
	"github.com/geohistoricaldata/cassinigraph/pkg/pipeline"
)

// generateFlags holds flags for the generate command.
type generateFlags struct {
	methods   []string
	threshold string
	output    string
	formats   []string
	region    string
	workers   int
	timeout   time.Duration
}

// generateCommand creates the generate command.
func (c *CLI) generateCommand() *cobra.Command {
	var flags generateFlags

	cmd := &cobra.Command{
		Use:   "generate -m METHOD... [-t THRESHOLD]",
		Short: "Generate proximity components for one or more methods",
		Long: `Generate runs each method in turn and writes one layer per method.

Proximity methods (full, settlement, religion) need a distance threshold in
metres. The parishes method links hamlets to the seat of their parish cell and
ignores the threshold.`,
		Example: `  cassinigraph generate -m full -t 800
  cassinigraph generate -m settlement,religion -t 500 --format shp,geojson
  cassinigraph generate -m parishes --sqlite cassini.db -o out`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// "-m full settlement": trailing arguments are more methods.
			flags.methods = append(flags.methods, args...)
			methods, opts, err := c.generateOptions(cmd, flags)
			if err != nil {
				return err
			}
			return c.runGenerate(cmd.Context(), methods, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&flags.methods, "method", "m", nil, "methods to run (repeatable, comma-separated)")
	cmd.Flags().StringVarP(&flags.threshold, "threshold", "t", "", "maximum link distance in metres")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output directory (default "+pipeline.DefaultOutputDir+")")
	cmd.Flags().StringSliceVar(&flags.formats, "format", nil, "output formats: shp, geojson, dot, svg, mongo (default shp)")
	cmd.Flags().StringVar(&flags.region, "region", "", "query region as EWKT (default: Cassini sheet 52)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "concurrent neighbor queries (default GOMAXPROCS)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "abort neighbor discovery after this long")
	_ = cmd.MarkFlagRequired("method")
	_ = cmd.RegisterFlagCompletionFunc("method", c.completeMethods)

	return cmd
}

// generateOptions resolves flags, configuration file and defaults, in that
// order of precedence, and validates the result before any source is opened.
// Invalid input prints the command usage.
func (c *CLI) generateOptions(cmd *cobra.Command, flags generateFlags) ([]method.Method, pipeline.Options, error) {
	methods, opts, err := c.resolveOptions(flags)
	if err != nil {
		if errors.IsValidation(err) {
			_ = cmd.Usage()
		}
		return nil, pipeline.Options{}, err
	}
	return methods, opts, nil
}

func (c *CLI) resolveOptions(flags generateFlags) ([]method.Method, pipeline.Options, error) {
	cfg := c.config

	methods, err := cfg.Table.Resolve(flags.methods)
	if err != nil {
		return nil, pipeline.Options{}, err
	}

	opts := pipeline.Options{
		Threshold: cfg.Threshold,
		OutputDir: firstNonEmpty(flags.output, cfg.OutputDir),
		Workers:   cfg.Workers,
		Timeout:   flags.timeout,
		Logger:    c.Logger,
	}
	if flags.threshold != "" {
		if opts.Threshold, err = errors.ParseThreshold(flags.threshold); err != nil {
			return nil, pipeline.Options{}, err
		}
	}
	if flags.workers > 0 {
		opts.Workers = flags.workers
	}

	formats := flags.formats
	if len(formats) == 0 {
		formats = cfg.Formats
	}
	if len(formats) > 0 {
		if opts.Formats, err = export.ParseFormats(formats...); err != nil {
			return nil, pipeline.Options{}, err
		}
	}

	opts.Region = geo.DefaultRegion()
	if r := firstNonEmpty(flags.region, cfg.Region); r != "" {
		if opts.Region, err = geo.ParseRegion(r); err != nil {
			return nil, pipeline.Options{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid region")
		}
	}

	if err := opts.Validate(methods); err != nil {
		return nil, pipeline.Options{}, err
	}
	return methods, opts, nil
}

func (c *CLI) runGenerate(ctx context.Context, methods []method.Method, opts pipeline.Options) error {
	prog := newProgress(c.Logger)

	var db *mongo.Database
	if slices.Contains(opts.Formats, export.FormatMongo) {
		if c.flags.mongoURI == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "the mongo format needs --mongo-uri (or %s)", envMongoURI)
		}
		client, err := export.ConnectMongo(ctx, c.flags.mongoURI)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		db = client.Database(export.DefaultMongoDatabase)
	}

	src, release, err := c.openSource(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			c.Logger.Warn("close source", "err", err)
		}
	}()

	runner := pipeline.NewRunner(src, pipeline.ExportSinks(db), c.Logger)
	results, runErr := runner.RunAll(ctx, methods, opts)

	printNewline()
	printSummary(results)
	for _, res := range results {
		if res.OK() {
			for _, path := range outputPaths(opts, res.Method) {
				printFile(path)
			}
		}
	}
	if runErr != nil {
		return runErr
	}
	prog.done("Generated " + pluralize(len(results), "method"))
	return nil
}

// outputPaths lists the files written for m.
func outputPaths(opts pipeline.Options, m method.Method) []string {
	var out []string
	for _, f := range opts.Formats {
		base := filepath.Join(opts.OutputDir, m.Name)
		switch f {
		case export.FormatShapefile:
			out = append(out, base+".shp")
		case export.FormatGeoJSON:
			out = append(out, base+".geojson")
		case export.FormatDOT:
			out = append(out, base+".dot")
		case export.FormatSVG:
			out = append(out, base+".svg")
		case export.FormatMongo:
			out = append(out, "mongodb: "+export.DefaultMongoDatabase+"."+m.Name)
		}
	}
	return out
}

// completeMethods completes method names. The configuration is not loaded
// during completion, so only --config given on the command line counts.
func (c *CLI) completeMethods(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	tbl := method.Default()
	if c.flags.config != "" {
		if cfg, err := method.LoadFile(c.flags.config, nil); err == nil {
			tbl = cfg.Table
		}
	}
	return tbl.Names(), cobra.ShellCompDirectiveNoFileComp
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

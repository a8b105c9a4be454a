package cli

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/geohistoricaldata/cassinigraph/internal/server"
	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
	"github.com/geohistoricaldata/cassinigraph/pkg/observability/prom"
	"github.com/geohistoricaldata/cassinigraph/pkg/pipeline"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve components as GeoJSON over HTTP",
		Long: `Serve exposes the method table and runs methods on request:

  GET /methods
  GET /methods/{name}/components?threshold=800
  GET /metrics
  GET /healthz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, metrics)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&metrics, "metrics", true, "expose Prometheus metrics on /metrics")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, metrics bool) error {
	cfg := c.config
	opts := pipeline.Options{
		Workers: cfg.Workers,
		Region:  geo.DefaultRegion(),
		Logger:  c.Logger,
	}
	if cfg.Region != "" {
		r, err := geo.ParseRegion(cfg.Region)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid region")
		}
		opts.Region = r
	}

	var metricsHandler http.Handler
	if metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		prom.New(reg).Install()
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
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

	srv := server.New(server.Config{
		Runner:  pipeline.NewRunner(src, nil, c.Logger),
		Table:   cfg.Table,
		Options: opts,
		Metrics: metricsHandler,
		Logger:  c.Logger,
	})
	printInfo("Serving %d methods on %s", len(cfg.Table.Names()), addr)

	err = srv.ListenAndServe(ctx, addr)
	if stderrors.Is(err, context.Canceled) {
		c.Logger.Info("server stopped")
		return nil
	}
	return err
}

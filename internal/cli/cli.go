// Package cli implements the cassinigraph command-line interface.
//
// # Commands
//
//   - generate: run one or more methods and export their components
//   - methods: list the method table
//   - cache: inspect or clear the feature cache
//   - serve: serve components over HTTP with Prometheus metrics
//
// # Sources
//
// Features are read from PostGIS (--dsn or CASSINIGRAPH_DSN) or from a local
// SQLite extract (--sqlite). Query results are cached on disk by default;
// --cache redis shares them through Redis and --cache none disables caching.
//
// # Logging
//
// All commands support --debug (-d, alias --verbose/-v) for debug-level
// logging through charmbracelet/log.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/geohistoricaldata/cassinigraph/pkg/buildinfo"
	"github.com/geohistoricaldata/cassinigraph/pkg/method"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "cassinigraph"

	envDSN      = "CASSINIGRAPH_DSN"
	envRedisURL = "CASSINIGRAPH_REDIS_URL"
	envMongoURI = "CASSINIGRAPH_MONGO_URI"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// Cache backends accepted by --cache.
const (
	cacheFile  = "file"
	cacheRedis = "redis"
	cacheNone  = "none"
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	flags  globalFlags
	config *method.Config
}

// globalFlags are the persistent flags of the root command.
type globalFlags struct {
	config   string
	dsn      string
	sqlite   string
	cache    string
	redisURL string
	refresh  bool
	mongoURI string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Cassinigraph links Cassini map toponyms into proximity components",
		Long: `Cassinigraph reads point features of the 18th-century Cassini map, links
every pair closer than a distance threshold, reduces the resulting graph to
a minimum spanning forest and exports each connected component as a
multi-part polyline.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.config, "config", "", "TOML file overriding or extending the method table")
	pf.StringVar(&c.flags.dsn, "dsn", os.Getenv(envDSN), "PostGIS connection string (env "+envDSN+")")
	pf.StringVar(&c.flags.sqlite, "sqlite", "", "read features from a SQLite extract instead of PostGIS")
	pf.StringVar(&c.flags.cache, "cache", cacheFile, "feature cache backend: file, redis or none")
	pf.StringVar(&c.flags.redisURL, "redis-url", envOr(envRedisURL, "redis://localhost:6379/0"), "Redis URL for --cache redis (env "+envRedisURL+")")
	pf.BoolVar(&c.flags.refresh, "refresh", false, "ignore cached features and query the source again")
	pf.StringVar(&c.flags.mongoURI, "mongo-uri", os.Getenv(envMongoURI), "MongoDB URI for the mongo format (env "+envMongoURI+")")

	// Register all subcommands
	root.AddCommand(c.generateCommand())
	root.AddCommand(c.methodsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads --config, or falls back to the built-in method table.
func (c *CLI) loadConfig() error {
	if c.flags.config == "" {
		c.config = &method.Config{Table: method.Default()}
		return nil
	}
	cfg, err := method.LoadFile(c.flags.config, nil)
	if err != nil {
		return err
	}
	c.Logger.Debug("loaded config", "path", c.flags.config, "methods", len(cfg.Table.Names()))
	c.config = cfg
	return nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/cassinigraph/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geohistoricaldata/cassinigraph/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the feature cache",
		Long: `Feature query results are cached per source, method predicate and region,
in ~/.cache/cassinigraph by default or in Redis with --cache redis.`,
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached feature query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.flags.cache == cacheNone {
				printInfo("Caching is disabled")
				return nil
			}
			ch, err := c.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer ch.Close()

			clearer, ok := ch.(cache.Clearer)
			if !ok {
				return fmt.Errorf("cache backend %q cannot be cleared", c.flags.cache)
			}
			if err := clearer.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			printSuccess("Cleared the %s cache", c.flags.cache)
			if fc, ok := ch.(*cache.FileCache); ok {
				printDetail("Directory: %s", fc.Dir())
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the cache lives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch c.flags.cache {
			case cacheRedis:
				fmt.Fprintln(cmd.OutOrStdout(), c.flags.redisURL)
				return nil
			case cacheNone:
				printInfo("Caching is disabled")
				return nil
			}
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}

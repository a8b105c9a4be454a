package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// methodsCommand creates the methods command.
func (c *CLI) methodsCommand() *cobra.Command {
	var names bool

	cmd := &cobra.Command{
		Use:   "methods",
		Short: "List the available generation methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl := c.config.Table
			if names {
				for _, name := range tbl.Names() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), methodsTable(tbl))
			if c.flags.config != "" {
				printDetail("Methods from %s and the built-in table", c.flags.config)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&names, "names", false, "print method names only, one per line")
	return cmd
}

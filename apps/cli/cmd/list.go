package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/apicheck/packages/countries"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the checks in the suite",
	Long: `List every case in the REST Countries suite with its tags and description.

Examples:
  apicheck list`,
	Args: usageArgs(cobra.NoArgs),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	suite := countries.Suite()

	fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", suite.Name)
	for _, c := range suite.Cases {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", c.Name)
		if c.Description != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", c.Description)
		}
		if len(c.Tags) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "    tags: %s\n", strings.Join(c.Tags, ", "))
		}
		if c.Skip != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "    skipped: %s\n", c.Skip)
		}
	}

	return nil
}

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/abdul-hamid-achik/apicheck/packages/schema"
	"github.com/spf13/cobra"
)

var schemaFileFlag string

var validateCmd = &cobra.Command{
	Use:   "validate <file.json>",
	Short: "Validate a JSON document against the country schema",
	Long: `Validate a saved response body against the bundled REST Countries schema
without making any requests. The document root must be an array.

Examples:
  apicheck validate canada.json
  apicheck validate canada.json --schema my-schema.json`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: validateCommand,
}

func init() {
	validateCmd.Flags().StringVar(&schemaFileFlag, "schema", "", "Validate against this schema file instead of the bundled one")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	file := args[0]

	doc, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	var s *schema.Schema
	if schemaFileFlag != "" {
		s, err = schema.LoadFile(schemaFileFlag)
	} else {
		s, err = schema.Load(schema.Countries)
	}
	if err != nil {
		return err
	}

	if err := schema.RequireArray(doc); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Invalid: %s: %v\n", file, err)
		return withExitCode(ExitTestFailure, nil)
	}

	err = s.Validate(doc)
	var verr *schema.ValidationError
	switch {
	case err == nil:
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		return nil
	case errors.As(err, &verr):
		fmt.Fprintf(cmd.ErrOrStderr(), "Invalid: %s (%d violation(s))\n", file, len(verr.Violations))
		for _, v := range verr.Violations {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", v.Pointer, v.Message)
		}
		return withExitCode(ExitTestFailure, nil)
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "Invalid: %s: %v\n", file, err)
		return withExitCode(ExitTestFailure, nil)
	}
}

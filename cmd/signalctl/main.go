// Command signalctl scores visitors, selects segments and checks rule tables
// from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pubomax/website-navigator/rules"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "signalctl",
		Short:         "Inspect visitor scoring and segmentation",
		Long:          "signalctl evaluates attribute records and navigation signals against a rule table, and validates rule table files before they are uploaded.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("table", "t", os.Getenv("RULE_TABLE_PATH"), "Rule table file (.yaml, .yml or .json); built-in table when empty")

	root.AddCommand(newScoreCmd())
	root.AddCommand(newSegmentCmd())
	root.AddCommand(newTableCmd())
	return root
}

// loadTable returns the table named by --table, or the built-in table
func loadTable(cmd *cobra.Command) (*rules.Table, error) {
	path, err := cmd.Flags().GetString("table")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return rules.DefaultTable(), nil
	}
	return rules.LoadTableFile(path)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

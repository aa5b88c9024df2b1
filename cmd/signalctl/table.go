package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pubomax/website-navigator/rules"
)

func newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Validate and print rule tables",
	}
	cmd.AddCommand(newTableValidateCmd())
	cmd.AddCommand(newTableShowCmd())
	return cmd
}

func newTableValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate rule table files",
		Long:  "Checks weight bands, rule priorities and that every segment expression compiles.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				table, err := rules.LoadTableFile(path)
				if err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "OK   %s (version %s, %d attributes, %d segment rules)\n",
					path, table.Version, len(table.Attributes), len(table.Segments))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tables invalid", failed, len(args))
			}
			return nil
		},
	}
}

func newTableShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the rule table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := loadTable(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(table); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(table)
			default:
				return fmt.Errorf("unknown format %q (use: yaml, json)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml or json")
	return cmd
}

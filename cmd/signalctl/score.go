package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pubomax/website-navigator/scoring"
	"github.com/pubomax/website-navigator/signals"
)

func newScoreCmd() *cobra.Command {
	var (
		record signals.AttributeRecord
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the conversion potential of an attribute record",
		Long:  "Scores the given attributes against the rule table. Omitted attributes are excluded from the score; unknown values use the attribute default.",
		Example: `  signalctl score --business-size enterprise --acquisition-channel referral
  signalctl score --industry retail --timeline exploring --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := loadTable(cmd)
			if err != nil {
				return err
			}

			score := scoring.ComputeScore(record, table)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(score)
			}

			fmt.Fprintf(out, "Score: %d%%\n", score.Percentage)
			if len(score.Factors) == 0 {
				fmt.Fprintln(out, "No attributes given")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FACTOR\tVALUE\tIMPACT\tWEIGHT")
			for _, f := range score.Factors {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", f.Name, f.Value, f.Impact, f.Weight)
			}
			return w.Flush()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&record.Industry, "industry", "", "Industry")
	flags.StringVar(&record.BusinessSize, "business-size", "", "Business size")
	flags.StringVar(&record.AcquisitionChannel, "acquisition-channel", "", "Acquisition channel")
	flags.StringVar(&record.ServiceInterest, "service-interest", "", "Service interest")
	flags.StringVar(&record.BudgetTier, "budget-tier", "", "Budget tier")
	flags.StringVar(&record.Timeline, "timeline", "", "Purchase timeline")
	flags.BoolVar(&asJSON, "json", false, "Print the score as JSON")
	return cmd
}

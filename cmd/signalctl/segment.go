package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pubomax/website-navigator/rules"
	"github.com/pubomax/website-navigator/segment"
	"github.com/pubomax/website-navigator/session"
	"github.com/pubomax/website-navigator/signals"
)

func newSegmentCmd() *cobra.Command {
	var (
		pageURL  string
		referrer string
		visits   int
		stored   string
		explain  bool
		ruleID   string
	)

	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Select the segment for a page view",
		Long:  "Selects a visitor segment from the page URL's utm_* parameters, the referrer and the visit count, as the server would for a visitor with the given history.",
		Example: `  signalctl segment --url "https://acme.example/?utm_source=linkedin&utm_campaign=enterprise-push"
  signalctl segment --visits 4
  signalctl segment --referrer https://www.facebook.com/ --stored marketing
  signalctl segment --visits 2 --explain
  signalctl segment --referrer https://www.linkedin.com/ --rule referrer-linkedin`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if visits < 1 {
				return fmt.Errorf("--visits must be at least 1, got %d", visits)
			}

			table, err := loadTable(cmd)
			if err != nil {
				return err
			}
			engine, err := rules.NewEngine(table)
			if err != nil {
				return err
			}

			history := session.FirstVisit(time.Now())
			history.VisitCount = visits
			if stored != "" {
				seg, err := rules.ParseSegment(stored)
				if err != nil {
					return err
				}
				history = history.WithSegment(seg)
			}

			env := signals.FromURL(pageURL, referrer)
			out := cmd.OutOrStdout()

			if ruleID != "" {
				result, err := engine.Evaluate(ruleID, env.Vars(history.VisitCount))
				if result == nil {
					return err
				}
				return writeResults(out, result)
			}

			decision, next := segment.NewSelector(engine).Decide(env, history)

			fmt.Fprintf(out, "Segment: %s\n", decision.Segment)
			fmt.Fprintf(out, "Source:  %s\n", decision.Source)
			if decision.RuleID != "" {
				fmt.Fprintf(out, "Rule:    %s\n", decision.RuleID)
			}
			if next.HasSegment() && !history.HasSegment() {
				fmt.Fprintln(out, "Stored:  yes")
			}
			fmt.Fprintf(out, "Headline: %s\n", segment.ContentFor(decision.Segment).Headline)

			if explain {
				fmt.Fprintln(out)
				return writeResults(out, engine.EvaluateAll(env.Vars(history.VisitCount))...)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&pageURL, "url", "", "Page URL with utm_* query parameters")
	flags.StringVar(&referrer, "referrer", "", "Referrer URL")
	flags.IntVar(&visits, "visits", 1, "Visit count including this visit")
	flags.StringVar(&stored, "stored", "", "Previously stored segment")
	flags.BoolVar(&explain, "explain", false, "Show every rule's outcome in evaluation order")
	flags.StringVar(&ruleID, "rule", "", "Evaluate a single rule by ID")
	return cmd
}

// writeResults prints rule outcomes as a table
func writeResults(out io.Writer, results ...*rules.EvaluationResult) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tPRIORITY\tSEGMENT\tMATCHED\tCOST\tERROR")
	for _, r := range results {
		errText := "-"
		if r.Error != nil {
			errText = r.Error.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%t\t%d\t%s\n", r.RuleID, r.Priority, r.Segment, r.Matched, r.Cost, errText)
	}
	return w.Flush()
}

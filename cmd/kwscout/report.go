package main

import (
	"fmt"
	"time"

	"github.com/FranksOps/kwscout/internal/report"
	"github.com/FranksOps/kwscout/internal/storage"
	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		format  string
		since   time.Duration
		method  string
		outcome string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the upstream call journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := openJournal(cmd.Context(), a.cfg.Journal)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			if journal == nil {
				return fmt.Errorf("no journal configured; set journal.backend and journal.dsn")
			}
			defer journal.Close()

			filter := storage.Filter{Method: method, Outcome: outcome, Limit: limit}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}

			records, err := journal.Query(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("query journal: %w", err)
			}
			summary := report.GenerateSummary(records)

			switch format {
			case "json":
				return report.WriteJSON(a.out, summary)
			case "html":
				return report.WriteHTML(a.out, summary)
			case "text", "":
				return report.WriteText(a.out, summary)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	f := cmd.Flags()
	f.StringVar(&format, "format", "text", "output format: text, json or html")
	f.DurationVar(&since, "since", 0, "only include calls newer than this, e.g. 24h")
	f.StringVar(&method, "method", "", "only include calls to this upstream method")
	f.StringVar(&outcome, "outcome", "", "only include calls with this outcome (ok, timeout, error)")
	f.IntVar(&limit, "limit", 0, "include at most this many of the newest calls")
	return cmd
}

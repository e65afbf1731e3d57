package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <keyword>...",
		Short: "Analyze seed keywords and print the results as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer d.Close()

			results, err := d.pipeline.Analyze(cmd.Context(), args, domainFlag(cmd, a))
			if err != nil {
				return err
			}
			return writeJSON(a.out, results)
		},
	}
	addDomainFlag(cmd)
	return cmd
}

func newRankCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank <keyword>...",
		Short: "Print the positions the domain ranks at for the given keywords",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer d.Close()

			rankings, err := d.pipeline.FindRanking(cmd.Context(), args, domainFlag(cmd, a))
			if err != nil {
				return err
			}
			return writeJSON(a.out, rankings)
		},
	}
	addDomainFlag(cmd)
	return cmd
}

func addDomainFlag(cmd *cobra.Command) {
	cmd.Flags().String("domain", "", "target domain (default analysis.default_domain)")
}

func domainFlag(cmd *cobra.Command, a *app) string {
	if d, _ := cmd.Flags().GetString("domain"); d != "" {
		return d
	}
	return a.cfg.Analysis.DefaultDomain
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

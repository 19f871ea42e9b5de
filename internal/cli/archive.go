package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dvloznov/refund-explainer/internal/archive"
	"github.com/spf13/cobra"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently archived explanations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.app.Recorder.ListRecent(contextOf(cmd), limit)
			if err != nil {
				return fmt.Errorf("list explanations: %w", err)
			}
			if asJSON {
				return printJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No archived explanations (archive driver %q).\n", s.cfg.Archive.Driver)
				return nil
			}

			now := time.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWHEN\tSOURCE\tYEARS\tCHANGE\tDRIVERS")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d-%d\t%s\t%d\n",
					e.ID, humanize.RelTime(e.CreatedAt, now, "ago", "from now"), e.Source,
					e.PriorYear, e.CurrentYear, signedDollars(e.TotalChange), e.DriverCount)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", archive.DefaultListLimit, "number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func newPruneCmd(root *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archived explanations older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			retention := s.cfg.Archive.Retention
			if olderThan > 0 {
				retention = olderThan
			}
			if retention <= 0 {
				return fmt.Errorf("retention is disabled; pass --older-than")
			}

			pruner, err := archive.NewPruner(s.app.Recorder, retention, s.cfg.Archive.PruneSchedule, s.log)
			if err != nil {
				return err
			}
			n, err := pruner.RunNow(contextOf(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %s %s older than %s.\n",
				humanize.Comma(n), pluralize(n, "explanation"), retention)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override archive.retention")
	return cmd
}

func pluralize(n int64, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

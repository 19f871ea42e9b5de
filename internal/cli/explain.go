package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dvloznov/refund-explainer/internal/archive"
	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newExplainCmd(root *rootOptions) *cobra.Command {
	var (
		priorPath   string
		currentPath string
		asJSON      bool
		noArchive   bool
	)

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain the change in balance between two tax records",
		Example: `  refundctl explain --prior 2023.json --current 2024.json
  refundctl explain --prior gs://returns/2023.json --current - --json < 2024.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := contextOf(cmd)

			prior, err := loadRecord(ctx, cmd, s.app.Storage, "prior", priorPath)
			if err != nil {
				return err
			}
			current, err := loadRecord(ctx, cmd, s.app.Storage, "current", currentPath)
			if err != nil {
				return err
			}

			result, err := s.app.Engine.Explain(ctx, prior, current)
			if err != nil {
				return err
			}

			if !noArchive {
				entry, err := archive.NewEntry(result, archive.SourceCLI)
				if err == nil {
					err = s.app.Recorder.Record(ctx, entry)
				}
				if err != nil {
					s.log.Warn().Err(err).Msg("Failed to archive explanation")
				}
			}

			if asJSON {
				return printJSON(cmd, result)
			}
			return printExplanation(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&priorPath, "prior", "", "prior-year record (file, gs:// URI or -)")
	cmd.Flags().StringVar(&currentPath, "current", "", "current-year record (file, gs:// URI or -)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the explanation as JSON")
	cmd.Flags().BoolVar(&noArchive, "no-archive", false, "do not record the run in the archive")
	return cmd
}

func printExplanation(w io.Writer, r domain.RefundExplainerResult) error {
	fmt.Fprintf(w, "%d: %s\n", r.PriorYear, r.PriorBalance.Describe())
	fmt.Fprintf(w, "%d: %s\n", r.CurrentYear, r.CurrentBalance.Describe())
	fmt.Fprintf(w, "Change: %s (%s)\n", signedDollars(r.TotalChange), r.Direction)

	if len(r.Drivers) == 0 {
		fmt.Fprintln(w, "\nNo field changes moved the balance.")
	} else {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FIELD\tCATEGORY\tPRIOR\tCURRENT\tIMPACT")
		for _, d := range r.Drivers {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				d.Label, d.Category, d.PriorValue, d.CurrentValue,
				signedDollars(d.Impact))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
		for _, d := range r.Drivers {
			fmt.Fprintf(w, "- %s\n", d.Explanation)
		}
	}

	if r.Narrative != nil {
		fmt.Fprintf(w, "\nSummary: %s\n", *r.Narrative)
	}
	return nil
}

func signedDollars(d decimal.Decimal) string {
	s := domain.FormatDollars(d)
	switch d.Sign() {
	case 1:
		return "+" + s
	case -1:
		return "-" + s
	default:
		return s
	}
}

package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/dvloznov/refund-explainer/internal/lifeevents"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newPresetsCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List the life-event presets in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			presets := s.app.Simulator.Catalog().List()
			if asJSON {
				return printJSON(cmd, presets)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME\tFIELDS")
			for _, p := range presets {
				fmt.Fprintf(tw, "%s\t%s\t%v\n", p.Key, p.Name, p.FieldsAffected)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	return cmd
}

func newApplyCmd(root *rootOptions) *cobra.Command {
	var (
		basePath string
		custom   map[string]string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "apply EVENT_KEY",
		Short:   "Apply one life-event preset to a base record",
		Example: `  refundctl apply maxed_401k --base 2024.json --set traditional_401k=30000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := contextOf(cmd)

			base, err := loadRecord(ctx, cmd, s.app.Storage, "base", basePath)
			if err != nil {
				return err
			}

			var overrides map[string]domain.FieldValue
			if len(custom) > 0 {
				raw := make(map[string]any, len(custom))
				for k, v := range custom {
					raw[k] = v
				}
				if overrides, err = lifeevents.ParseOverrides(raw); err != nil {
					return err
				}
			}

			result, err := s.app.Simulator.Apply(args[0], base, overrides)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, result)
			}
			return printSimulation(ctx, cmd.OutOrStdout(), s, []string{result.EventKey}, result.Before, result.After, result.Diff, base, result.Record)
		},
	}

	cmd.Flags().StringVar(&basePath, "base", "", "base record (file, gs:// URI or -)")
	cmd.Flags().StringToStringVar(&custom, "set", nil, "override a preset value, as field=value (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newFoldCmd(root *rootOptions) *cobra.Command {
	var (
		basePath string
		events   []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "fold",
		Short:   "Apply a set of life-event presets to a base record from scratch",
		Example: `  refundctl fold --base 2024.json --event got_married --event had_baby`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := contextOf(cmd)

			base, err := loadRecord(ctx, cmd, s.app.Storage, "base", basePath)
			if err != nil {
				return err
			}

			result, err := s.app.Simulator.Fold(base, events)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, result)
			}
			return printSimulation(ctx, cmd.OutOrStdout(), s, result.ActiveEvents, result.Before, result.After, result.Diff, base, result.Record)
		},
	}

	cmd.Flags().StringVar(&basePath, "base", "", "base record (file, gs:// URI or -)")
	cmd.Flags().StringSliceVar(&events, "event", nil, "active preset key (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printSimulation(ctx context.Context, w io.Writer, s *session, events []string, before, after map[string]domain.FieldValue, diff map[string]decimal.Decimal, base, adjusted domain.TaxRecord) error {
	fmt.Fprintf(w, "Events: %v\n\n", events)

	names := make([]string, 0, len(after))
	for name := range after {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tBEFORE\tAFTER\tDIFF")
	for _, name := range names {
		delta := ""
		if d, ok := diff[name]; ok {
			delta = d.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, before[name], after[name], delta)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	b, err := s.app.Calculator.Calculate(ctx, base)
	if err != nil {
		return &domain.CalculationError{Stage: "before", Err: err}
	}
	a, err := s.app.Calculator.Calculate(ctx, adjusted)
	if err != nil {
		return &domain.CalculationError{Stage: "after", Err: err}
	}
	fmt.Fprintf(w, "\nBalance: %s -> %s\n", b.Describe(), a.Describe())
	return nil
}

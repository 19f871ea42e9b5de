// Package cli implements refundctl, the command-line front end to the
// explainer, the life-event simulator and the explanation archive.
package cli

import (
	"context"
	"fmt"

	"github.com/dvloznov/refund-explainer/internal/app"
	"github.com/dvloznov/refund-explainer/internal/config"
	"github.com/dvloznov/refund-explainer/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCmd builds the refundctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "refundctl",
		Short: "Explain why a tax refund changed between two years",
		Long: `refundctl attributes the change in a federal refund (or balance due)
between two tax records to the fields that caused it, simulates life
events on a record, and manages the archive of past explanations.

Records are JSON objects of field name to value. Inputs may be local
files, gs:// URIs, or "-" for standard input.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (YAML); REFUND_* environment variables override it")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newExplainCmd(opts),
		newPresetsCmd(opts),
		newApplyCmd(opts),
		newFoldCmd(opts),
		newBatchCmd(opts),
		newHistoryCmd(opts),
		newPruneCmd(opts),
	)
	return root
}

// Execute runs refundctl with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

// session is what a command needs to run: configuration, a logger on stderr
// and the wired services.
type session struct {
	cfg *config.Config
	log zerolog.Logger
	app *app.App
}

func (o *rootOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	log, err := logger.NewWithOptions(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	ctx := logger.WithContext(contextOf(cmd), log)
	cmd.SetContext(ctx)

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log, app: services}, nil
}

func (s *session) Close() {
	if err := s.app.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close services")
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

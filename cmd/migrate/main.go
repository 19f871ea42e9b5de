package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dvloznov/refund-explainer/internal/archive"
	"github.com/dvloznov/refund-explainer/internal/config"
	"github.com/dvloznov/refund-explainer/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("REFUND_CONFIG"), "Path to a YAML config file (or set REFUND_CONFIG env)")
		projectID  = flag.String("project", "", "GCP project ID (default archive.bigquery_project)")
		datasetID  = flag.String("dataset", "", "BigQuery dataset ID (default archive.bigquery_dataset)")
		appliedBy  = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		dryRun     = flag.Bool("dry-run", false, "List migrations without applying them")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if *projectID == "" {
		*projectID = cfg.Archive.BigQueryProject
	}
	if *datasetID == "" {
		*datasetID = cfg.Archive.BigQueryDataset
	}
	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag or archive.bigquery_project is required")
	}

	migrations, err := archive.BigQueryMigrations(*projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}

	if *dryRun {
		for _, m := range migrations {
			fmt.Printf("%04d_%s\n", m.Version, m.Name)
		}
		return
	}

	ctx := context.Background()
	migrator, err := archive.NewMigrator(ctx, *projectID, *datasetID, *appliedBy, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer migrator.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	count, err := migrator.Run(ctx, migrations)
	if err != nil {
		log.Fatal().Err(err).Int("applied", count).Msg("Migration failed")
	}

	if count == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		log.Info().Int("applied", count).Msg("Successfully applied migrations")
	}
}

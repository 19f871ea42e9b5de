// Package app builds the service components from configuration. It is shared
// by the API server and the refundctl CLI so both run the same stack.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/refund-explainer/internal/archive"
	"github.com/dvloznov/refund-explainer/internal/cache"
	"github.com/dvloznov/refund-explainer/internal/config"
	"github.com/dvloznov/refund-explainer/internal/explainer"
	"github.com/dvloznov/refund-explainer/internal/gcs"
	"github.com/dvloznov/refund-explainer/internal/lifeevents"
	"github.com/dvloznov/refund-explainer/internal/narrative"
	"github.com/dvloznov/refund-explainer/internal/taxcalc"
	"github.com/rs/zerolog"
)

// App holds the wired components. Close releases whatever they opened.
type App struct {
	Calculator taxcalc.Calculator
	Engine     *explainer.Engine
	Simulator  *lifeevents.Simulator
	Recorder   archive.Recorder
	Storage    gcs.ObjectStore

	closers []func() error
}

// New wires every component described by cfg.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Storage: gcs.NewClient()}

	calc, err := a.calculator(ctx, cfg, log)
	if err != nil {
		return nil, a.fail(err)
	}
	a.Calculator = calc

	a.Engine = explainer.NewEngine(calc, composer(ctx, cfg, log))

	catalog, err := lifeevents.LoadCatalog(ctx, cfg.Catalog.Source, a.Storage)
	if err != nil {
		return nil, a.fail(err)
	}
	a.Simulator = lifeevents.NewSimulator(catalog)
	log.Info().Int("presets", catalog.Len()).Str("source", sourceName(cfg.Catalog.Source)).Msg("Loaded life-event catalog")

	recorder, err := OpenArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, a.fail(err)
	}
	a.Recorder = recorder
	a.closers = append(a.closers, recorder.Close)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) fail(err error) error {
	if cerr := a.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// calculator returns the reference calculator, cached when a TTL is set.
func (a *App) calculator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (taxcalc.Calculator, error) {
	var calc taxcalc.Calculator = taxcalc.NewFederal()
	if cfg.Calculator.CacheTTL <= 0 {
		return calc, nil
	}

	var store cache.Store
	if cfg.Cache.RedisAddr != "" {
		redisStore := cache.NewRedisStore(cfg.Cache.RedisAddr)
		if err := redisStore.Ping(ctx); err != nil {
			_ = redisStore.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		a.closers = append(a.closers, redisStore.Close)
		store = redisStore
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Using Redis calculator cache")
	} else {
		store = cache.NewMemoryStore()
	}

	return taxcalc.NewCached(calc, store, cfg.Calculator.CacheTTL), nil
}

// composer returns the Gemini composer when enabled. Startup failures fall
// back to no narrative since summaries are optional.
func composer(ctx context.Context, cfg *config.Config, log zerolog.Logger) narrative.Composer {
	if !cfg.Narrative.Enabled {
		return narrative.Noop{}
	}
	c, err := narrative.NewGeminiComposer(ctx, cfg.Narrative.Model, cfg.Narrative.Timeout)
	if err != nil {
		log.Warn().Err(err).Msg("Narrative summaries disabled")
		return narrative.Noop{}
	}
	log.Info().Str("model", cfg.Narrative.Model).Msg("Narrative summaries enabled")
	return c
}

// OpenArchive opens the configured explanation archive.
func OpenArchive(ctx context.Context, cfg config.ArchiveConfig) (archive.Recorder, error) {
	switch cfg.Driver {
	case config.ArchiveSQLite:
		r, err := archive.NewSQLiteRecorder(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite archive: %w", err)
		}
		return r, nil
	case config.ArchiveBigQuery:
		r, err := archive.NewBigQueryRecorder(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			return nil, fmt.Errorf("open bigquery archive: %w", err)
		}
		return r, nil
	case "", config.ArchiveNone:
		return archive.NewNoopRecorder(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}

// NewPruner schedules archive retention, or returns nil when retention is off.
func NewPruner(recorder archive.Recorder, cfg config.ArchiveConfig, log zerolog.Logger) (*archive.Pruner, error) {
	if cfg.Driver == config.ArchiveNone || cfg.Retention <= 0 {
		return nil, nil
	}
	return archive.NewPruner(recorder, cfg.Retention, cfg.PruneSchedule, log)
}

func sourceName(source string) string {
	if source == "" {
		return "built-in"
	}
	return source
}

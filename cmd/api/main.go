package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/refund-explainer/internal/api/handlers"
	"github.com/dvloznov/refund-explainer/internal/api/middleware"
	"github.com/dvloznov/refund-explainer/internal/app"
	"github.com/dvloznov/refund-explainer/internal/config"
	"github.com/dvloznov/refund-explainer/internal/jobs"
	"github.com/dvloznov/refund-explainer/internal/jobs/inmemory"
	"github.com/dvloznov/refund-explainer/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("REFUND_CONFIG"), "Path to a YAML config file (or set REFUND_CONFIG env)")
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

	ctx := context.Background()

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close services")
		}
	}()

	pruner, err := app.NewPruner(services.Recorder, cfg.Archive, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create archive pruner")
	}
	if pruner != nil {
		pruner.Start()
		defer pruner.Stop()
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.QueueOptions{
		BufferSize: cfg.Jobs.BufferSize,
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
	}, jobStore)

	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	processor := jobs.NewBatchProcessor(services.Engine, services.Recorder, cfg.Jobs.Concurrency)

	go func() {
		log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, processor.Handle); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	explainHandler := handlers.NewExplainHandler(services.Engine, services.Recorder, log)
	lifeEventsHandler := handlers.NewLifeEventsHandler(services.Simulator, services.Calculator, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, jobQueue, cfg.Jobs.MaxPairs, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/explain-refund-change", handlers.Method(http.MethodPost, explainHandler.ExplainRefundChange))
	mux.HandleFunc("/api/explanations", handlers.Method(http.MethodGet, explainHandler.ListExplanations))
	mux.HandleFunc("/api/explanations/batch", handlers.Method(http.MethodPost, jobsHandler.EnqueueBatch))

	mux.HandleFunc("/api/life-events", handlers.Method(http.MethodGet, lifeEventsHandler.ListPresets))
	mux.HandleFunc("/api/life-events/apply", handlers.Method(http.MethodPost, lifeEventsHandler.Apply))
	mux.HandleFunc("/api/life-events/fold", handlers.Method(http.MethodPost, lifeEventsHandler.Fold))

	mux.HandleFunc("/api/jobs", handlers.Method(http.MethodGet, jobsHandler.ListJobs))
	mux.HandleFunc("/api/jobs/", handlers.Method(http.MethodGet, jobsHandler.GetJobFromPath))

	mux.HandleFunc("/health", handlers.Health)

	// RequestID must wrap Logger so every log line carries the ID.
	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.CORS(cfg.Server.CORSOrigin),
	}
	if cfg.RateLimit.RPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		defer limiter.Stop()
		chain = append(chain, middleware.RateLimit(limiter))
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      middleware.Chain(mux, chain...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("archive", cfg.Archive.Driver).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop accepting jobs and wait for in-flight ones.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

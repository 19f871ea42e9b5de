package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/refund-explainer/internal/archive"
	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/dvloznov/refund-explainer/internal/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many pairs of one job run at once.
const DefaultConcurrency = 4

// Explainer is the part of explainer.Engine a batch needs.
type Explainer interface {
	Explain(ctx context.Context, prior, current domain.TaxRecord) (domain.RefundExplainerResult, error)
}

// BatchProcessor runs batch explanation jobs.
type BatchProcessor struct {
	explainer   Explainer
	recorder    archive.Recorder
	concurrency int
}

// NewBatchProcessor creates a processor. A nil recorder disables archiving.
func NewBatchProcessor(explainer Explainer, recorder archive.Recorder, concurrency int) *BatchProcessor {
	if recorder == nil {
		recorder = archive.NewNoopRecorder()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &BatchProcessor{explainer: explainer, recorder: recorder, concurrency: concurrency}
}

// Handle implements JobHandler. A pair that fails is reported in its result
// without stopping the others. The job itself fails only when no pair succeeded.
func (p *BatchProcessor) Handle(ctx context.Context, job Job) error {
	batch, ok := job.(*BatchExplainJob)
	if !ok {
		return fmt.Errorf("Handle: unsupported job type %s", job.GetType())
	}
	if len(batch.Pairs) == 0 {
		batch.Results = []PairResult{}
		return nil
	}

	results := p.Run(ctx, batch.Pairs, archive.SourceBatch)
	batch.Results = results

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed == len(results) {
		return fmt.Errorf("Handle: all %d pairs failed: %s", failed, results[0].Error)
	}
	return nil
}

// Run explains every pair and returns results in input order.
func (p *BatchProcessor) Run(ctx context.Context, pairs []ExplainPair, source string) []PairResult {
	log := logger.FromContext(ctx)
	results := make([]PairResult, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, pair := range pairs {
		g.Go(func() error {
			results[i] = p.explainOne(gctx, i, pair, source)
			return nil
		})
	}
	_ = g.Wait()

	log.Debug().Int("pairs", len(pairs)).Msg("Batch explained")
	return results
}

func (p *BatchProcessor) explainOne(ctx context.Context, index int, pair ExplainPair, source string) PairResult {
	out := PairResult{Index: index, Label: pair.Label}

	if err := ctx.Err(); err != nil {
		out.Error = err.Error()
		return out
	}

	result, err := p.explainer.Explain(ctx, pair.Prior, pair.Current)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Result = &result

	entry, err := archive.NewEntry(result, source)
	if err == nil {
		err = p.recorder.Record(ctx, entry)
	}
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Int("index", index).Msg("Failed to archive batch explanation")
	}
	return out
}

package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultPruneSchedule runs retention at 03:15 every day (seconds field first).
const DefaultPruneSchedule = "0 15 3 * * *"

// Pruner deletes archived runs older than the retention window on a cron schedule.
type Pruner struct {
	cron      *cron.Cron
	recorder  Recorder
	retention time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewPruner registers the retention task. A non-positive retention is an error.
func NewPruner(recorder Recorder, retention time.Duration, schedule string, log zerolog.Logger) (*Pruner, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("NewPruner: retention must be positive, got %s", retention)
	}
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}

	p := &Pruner{
		cron:      cron.New(cron.WithSeconds()),
		recorder:  recorder,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
	if _, err := p.cron.AddFunc(schedule, p.task); err != nil {
		return nil, fmt.Errorf("register prune task: %w", err)
	}
	return p, nil
}

// Start starts the cron scheduler.
func (p *Pruner) Start() {
	p.cron.Start()
	p.log.Info().Dur("retention", p.retention).Msg("Archive pruner started")
}

// Stop stops the scheduler and waits for a running task to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
	p.log.Info().Msg("Archive pruner stopped")
}

// RunNow prunes immediately.
func (p *Pruner) RunNow(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.recorder.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("RunNow: %w", err)
	}
	return n, nil
}

func (p *Pruner) task() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := p.RunNow(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("Archive prune failed")
		return
	}
	p.log.Info().Int64("deleted", n).Msg("Archive pruned")
}

package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/refund-explainer/internal/jobs"
	"github.com/dvloznov/refund-explainer/internal/logger"
	"github.com/google/uuid"
)

// Defaults used when QueueOptions fields are zero.
const (
	DefaultBufferSize   = 100
	DefaultWorkers      = 5
	DefaultRetryBackoff = time.Second
)

// QueueOptions tunes a Queue.
type QueueOptions struct {
	// BufferSize is how many jobs can wait before PublishBatchExplain blocks.
	BufferSize int
	// Workers is the number of concurrent consumers started by Start.
	Workers int
	// MaxRetries is assigned to jobs published without their own limit.
	MaxRetries int
	// RetryBackoff is multiplied by the retry count between attempts.
	RetryBackoff time.Duration
}

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Suitable for single-instance deployments and testing.
type Queue struct {
	jobChan   chan *jobs.BatchExplainJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers      int
	maxRetries   int
	retryBackoff time.Duration
}

// NewQueue creates a new in-memory job queue backed by store, which may be nil.
func NewQueue(opts QueueOptions, store jobs.JobStore) *Queue {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	return &Queue{
		jobChan:      make(chan *jobs.BatchExplainJob, opts.BufferSize),
		closeChan:    make(chan struct{}),
		store:        store,
		workers:      opts.Workers,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
	}
}

// PublishBatchExplain implements the Publisher interface.
func (q *Queue) PublishBatchExplain(ctx context.Context, job *jobs.BatchExplainJob) error {
	// The send below may block on a full buffer; Stop must still be able to
	// take the lock and close closeChan.
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.maxRetries
	}
	job.PairCount = len(job.Pairs)

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start implements the Consumer interface.
// The handler is called concurrently, up to the configured worker count.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return jobs.ErrQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.BatchExplainJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now().UTC()
	job.StartedAt = &now

	q.save(ctx, job)

	err := handler(logger.WithContext(ctx, log), job)

	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	retry := false
	if err != nil {
		job.Error = err.Error()

		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			retry = true
			log.Warn().Err(err).Int("retry", job.RetryCount).Msg("Job failed, retrying")
		} else {
			job.Status = jobs.JobStatusFailed
			log.Error().Err(err).Msg("Job failed")
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Int("pairs", job.PairCount).Msg("Job completed")
	}

	q.save(ctx, job)

	if retry {
		// Linear backoff on the retry count.
		backoff := time.Duration(job.RetryCount) * q.retryBackoff
		time.AfterFunc(backoff, func() {
			job.Status = jobs.JobStatusPending
			job.StartedAt = nil
			job.CompletedAt = nil
			if err := q.PublishBatchExplain(ctx, job); err != nil {
				log.Warn().Err(err).Msg("Failed to re-enqueue job")
			}
		})
	}
}

func (q *Queue) save(ctx context.Context, job *jobs.BatchExplainJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)

package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/refund-explainer/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeBatchExplain represents a batch of refund explanations.
	JobTypeBatchExplain JobType = "batch_explain"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusRetrying:
		return true
	}
	return false
}

var (
	// ErrJobNotFound is returned when a job ID is unknown to the store.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueClosed is returned when publishing to or starting a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// ExplainPair is one prior/current comparison inside a batch.
type ExplainPair struct {
	// Label is an optional caller-chosen name echoed back in the result.
	Label   string           `json:"label,omitempty"`
	Prior   domain.TaxRecord `json:"prior_data"`
	Current domain.TaxRecord `json:"current_data"`
}

// PairResult is the outcome of one pair. Exactly one of Result and Error is set.
type PairResult struct {
	Index  int                           `json:"index"`
	Label  string                        `json:"label,omitempty"`
	Result *domain.RefundExplainerResult `json:"result,omitempty"`
	Error  string                        `json:"error,omitempty"`
}

// BatchExplainJob represents a job that explains many record pairs.
type BatchExplainJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Pairs are the inputs. They are kept out of status responses.
	Pairs []ExplainPair `json:"-"`

	// PairCount is len(Pairs), reported for status polling.
	PairCount int `json:"pair_count"`

	// Results holds one entry per pair once the job has run.
	Results []PairResult `json:"results,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *BatchExplainJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *BatchExplainJob) GetType() JobType {
	return JobTypeBatchExplain
}

// GetStatus implements the Job interface.
func (j *BatchExplainJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishBatchExplain publishes a batch explanation job.
	PublishBatchExplain(ctx context.Context, job *BatchExplainJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *BatchExplainJob) error

	// GetJob retrieves a job by ID. Unknown IDs yield ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*BatchExplainJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*BatchExplainJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

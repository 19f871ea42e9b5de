package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dvloznov/refund-explainer/internal/api/middleware"
	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/dvloznov/refund-explainer/internal/jobs"
	"github.com/dvloznov/refund-explainer/internal/logger"
	"github.com/rs/zerolog"
)

// JobsHandler handles batch explanation jobs.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	maxPairs  int
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler. maxPairs caps one batch request.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, maxPairs int, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		maxPairs:  maxPairs,
		log:       log,
	}
}

type batchPair struct {
	Label       string         `json:"label"`
	PriorData   map[string]any `json:"prior_data"`
	CurrentData map[string]any `json:"current_data"`
}

type batchRequest struct {
	Pairs []batchPair `json:"pairs"`
}

// EnqueueBatch handles POST /api/explanations/batch
func (h *JobsHandler) EnqueueBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, log, err)
		return
	}

	if len(req.Pairs) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "pairs must not be empty")
		return
	}
	if h.maxPairs > 0 && len(req.Pairs) > h.maxPairs {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("at most %d pairs are accepted per batch", h.maxPairs))
		return
	}

	pairs := make([]jobs.ExplainPair, len(req.Pairs))
	var errs []error
	for i, p := range req.Pairs {
		prefix := fmt.Sprintf("pairs[%d]", i)
		prior, priorErr := recordFromData(prefix+".prior_data", p.PriorData)
		current, currentErr := recordFromData(prefix+".current_data", p.CurrentData)
		errs = append(errs, priorErr, currentErr)
		pairs[i] = jobs.ExplainPair{Label: p.Label, Prior: prior, Current: current}
	}
	if err := mergeValidation(errs...); err != nil {
		writeDomainError(w, log, err)
		return
	}

	job := &jobs.BatchExplainJob{Pairs: pairs}
	if err := h.publisher.PublishBatchExplain(ctx, job); err != nil {
		writeDomainError(w, log, err)
		return
	}

	log.Info().Str("job_id", job.JobID).Int("pairs", len(pairs)).Msg("Batch explanation job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":     job.JobID,
		"status":     job.Status,
		"pair_count": job.PairCount,
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// GetJobFromPath handles GET /api/jobs/{id} when mounted on the /api/jobs/ prefix.
func (h *JobsHandler) GetJobFromPath(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}
	h.GetJob(w, r, jobID)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		var verr domain.ValidationError
		verr.Add("status", "unknown job status %q", string(filter.Status))
		writeDomainError(w, h.log, &verr)
		return
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

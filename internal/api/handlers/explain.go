package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/refund-explainer/internal/api/middleware"
	"github.com/dvloznov/refund-explainer/internal/archive"
	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/dvloznov/refund-explainer/internal/logger"
	"github.com/rs/zerolog"
)

// Explainer is satisfied by explainer.Engine.
type Explainer interface {
	Explain(ctx context.Context, prior, current domain.TaxRecord) (domain.RefundExplainerResult, error)
}

// ExplainHandler handles refund-change explanations and their archive.
type ExplainHandler struct {
	explainer Explainer
	recorder  archive.Recorder
	log       zerolog.Logger
}

// NewExplainHandler creates a new explain handler. A nil recorder disables archiving.
func NewExplainHandler(explainer Explainer, recorder archive.Recorder, log zerolog.Logger) *ExplainHandler {
	if recorder == nil {
		recorder = archive.NewNoopRecorder()
	}
	return &ExplainHandler{
		explainer: explainer,
		recorder:  recorder,
		log:       log,
	}
}

type explainRequest struct {
	PriorData   map[string]any `json:"prior_data"`
	CurrentData map[string]any `json:"current_data"`
}

// ExplainRefundChange handles POST /api/explain-refund-change
func (h *ExplainHandler) ExplainRefundChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req explainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, log, err)
		return
	}

	if req.PriorData == nil || req.CurrentData == nil {
		middleware.WriteError(w, http.StatusBadRequest, "prior_data and current_data are required")
		return
	}

	prior, priorErr := recordFromData("prior_data", req.PriorData)
	current, currentErr := recordFromData("current_data", req.CurrentData)
	if err := mergeValidation(priorErr, currentErr); err != nil {
		writeDomainError(w, log, err)
		return
	}

	result, err := h.explainer.Explain(ctx, prior, current)
	if err != nil {
		writeDomainError(w, log, err)
		return
	}

	h.archive(ctx, result)

	middleware.WriteJSON(w, http.StatusOK, result)
}

// archive records result; failures are logged and do not affect the response.
func (h *ExplainHandler) archive(ctx context.Context, result domain.RefundExplainerResult) {
	entry, err := archive.NewEntry(result, archive.SourceAPI)
	if err == nil {
		err = h.recorder.Record(ctx, entry)
	}
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Failed to archive explanation")
	}
}

// ListExplanations handles GET /api/explanations
func (h *ExplainHandler) ListExplanations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := queryInt(r, "limit", archive.DefaultListLimit)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	entries, err := h.recorder.ListRecent(ctx, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list explanations")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list explanations")
		return
	}
	if entries == nil {
		entries = []archive.Entry{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"explanations": entries,
		"count":        len(entries),
	})
}

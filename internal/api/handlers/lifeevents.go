package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/refund-explainer/internal/api/middleware"
	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/dvloznov/refund-explainer/internal/lifeevents"
	"github.com/dvloznov/refund-explainer/internal/logger"
	"github.com/dvloznov/refund-explainer/internal/taxcalc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LifeEventsHandler handles the preset catalog and what-if simulations.
type LifeEventsHandler struct {
	sim  *lifeevents.Simulator
	calc taxcalc.Calculator
	log  zerolog.Logger
	now  func() time.Time
}

// NewLifeEventsHandler creates a new life events handler. calc may be nil, in
// which case responses carry no balance preview.
func NewLifeEventsHandler(sim *lifeevents.Simulator, calc taxcalc.Calculator, log zerolog.Logger) *LifeEventsHandler {
	return &LifeEventsHandler{
		sim:  sim,
		calc: calc,
		log:  log,
		now:  time.Now,
	}
}

// ListPresets handles GET /api/life-events
func (h *LifeEventsHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.sim.Catalog().List())
}

type applyRequest struct {
	EventKey     string         `json:"event_key"`
	BaseData     map[string]any `json:"base_data"`
	CustomValues map[string]any `json:"custom_values"`
}

type applyResponse struct {
	Event         string                       `json:"event"`
	EventKey      string                       `json:"event_key"`
	Before        map[string]domain.FieldValue `json:"before"`
	After         map[string]domain.FieldValue `json:"after"`
	Diff          map[string]decimal.Decimal   `json:"diff"`
	BeforeBalance *domain.BalanceResult        `json:"before_balance,omitempty"`
	AfterBalance  *domain.BalanceResult        `json:"after_balance,omitempty"`
}

// Apply handles POST /api/life-events/apply
func (h *LifeEventsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req applyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, log, err)
		return
	}

	req.EventKey = strings.TrimSpace(req.EventKey)
	if req.EventKey == "" {
		var verr domain.ValidationError
		verr.Add("event_key", "is required")
		writeDomainError(w, log, &verr)
		return
	}
	if req.BaseData == nil {
		middleware.WriteError(w, http.StatusBadRequest, "base_data is required")
		return
	}

	preset, err := h.sim.Catalog().Lookup(req.EventKey)
	if err != nil {
		writeDomainError(w, log, err)
		return
	}

	base, baseErr := recordFromData("base_data", h.withDefaultYear(req.BaseData))
	overrides, overrideErr := parseOverrides(req.CustomValues)
	if err := mergeValidation(baseErr, overrideErr); err != nil {
		writeDomainError(w, log, err)
		return
	}

	result, err := h.sim.Apply(preset.Key, base, overrides)
	if err != nil {
		writeDomainError(w, log, attributeOverrides(err, overrides))
		return
	}

	resp := applyResponse{
		Event:    preset.Name,
		EventKey: result.EventKey,
		Before:   result.Before,
		After:    result.After,
		Diff:     result.Diff,
	}
	if resp.BeforeBalance, resp.AfterBalance, err = h.preview(ctx, base, result.Record); err != nil {
		writeDomainError(w, log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

type foldRequest struct {
	BaseData     map[string]any `json:"base_data"`
	ActiveEvents []string       `json:"active_events"`
}

type foldResponse struct {
	lifeevents.FoldResult
	BeforeBalance *domain.BalanceResult `json:"before_balance,omitempty"`
	AfterBalance  *domain.BalanceResult `json:"after_balance,omitempty"`
}

// Fold handles POST /api/life-events/fold
func (h *LifeEventsHandler) Fold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req foldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, log, err)
		return
	}
	if req.BaseData == nil {
		middleware.WriteError(w, http.StatusBadRequest, "base_data is required")
		return
	}

	base, err := recordFromData("base_data", h.withDefaultYear(req.BaseData))
	if err != nil {
		writeDomainError(w, log, err)
		return
	}

	result, err := h.sim.Fold(base, req.ActiveEvents)
	if err != nil {
		writeDomainError(w, log, err)
		return
	}

	resp := foldResponse{FoldResult: result}
	if resp.BeforeBalance, resp.AfterBalance, err = h.preview(ctx, base, result.Record); err != nil {
		writeDomainError(w, log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// withDefaultYear fills a missing tax_year with last calendar year, the
// return most filers are working on.
func (h *LifeEventsHandler) withDefaultYear(raw map[string]any) map[string]any {
	if _, ok := raw["tax_year"]; ok {
		return raw
	}
	out := make(map[string]any, len(raw)+1)
	for k, v := range raw {
		out[k] = v
	}
	out["tax_year"] = h.now().Year() - 1
	return out
}

// preview computes the balance before and after a simulation.
func (h *LifeEventsHandler) preview(ctx context.Context, before, after domain.TaxRecord) (*domain.BalanceResult, *domain.BalanceResult, error) {
	if h.calc == nil {
		return nil, nil, nil
	}
	b, err := h.calc.Calculate(ctx, before)
	if err != nil {
		return nil, nil, &domain.CalculationError{Stage: "before", Err: err}
	}
	a, err := h.calc.Calculate(ctx, after)
	if err != nil {
		return nil, nil, &domain.CalculationError{Stage: "after", Err: err}
	}
	return &b, &a, nil
}

func parseOverrides(raw map[string]any) (map[string]domain.FieldValue, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	overrides, err := lifeevents.ParseOverrides(raw)
	if err != nil {
		return nil, prefixValidation("custom_values", err)
	}
	return overrides, nil
}

// attributeOverrides qualifies the fields of an apply failure that were set
// through custom_values. Fields left invalid by the preset keep their names.
func attributeOverrides(err error, overrides map[string]domain.FieldValue) error {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	out := &domain.ValidationError{Fields: make([]domain.FieldError, len(verr.Fields))}
	for i, fe := range verr.Fields {
		if _, ok := overrides[fe.Field]; ok {
			fe.Field = "custom_values." + fe.Field
		}
		out.Fields[i] = fe
	}
	return out
}

func prefixValidation(prefix string, err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Prefix(prefix)
	}
	return err
}

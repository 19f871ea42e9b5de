// Package handlers implements the HTTP endpoints of the refund explainer API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/refund-explainer/internal/api/middleware"
	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/dvloznov/refund-explainer/internal/jobs"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies; batch requests are the largest.
const maxBodyBytes = 4 << 20

// errMalformedBody marks a request body that is not valid JSON.
var errMalformedBody = errors.New("invalid request body")

// decodeJSON reads r's body into dst. Numbers decode as json.Number so money
// keeps its precision.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

// recordFromData validates one record from a request, qualifying field errors
// with the name of the JSON property it came from.
func recordFromData(prefix string, raw map[string]any) (domain.TaxRecord, error) {
	rec, err := domain.RecordFromMap(raw)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return domain.TaxRecord{}, verr.Prefix(prefix)
		}
		return domain.TaxRecord{}, err
	}
	return rec, nil
}

// mergeValidation combines validation errors from several inputs into one.
func mergeValidation(errs ...error) error {
	var merged domain.ValidationError
	for _, err := range errs {
		if err == nil {
			continue
		}
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		merged.Fields = append(merged.Fields, verr.Fields...)
	}
	return merged.OrNil()
}

// writeDomainError maps engine and service errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var (
		verr    *domain.ValidationError
		calcErr *domain.CalculationError
	)

	switch {
	case errors.Is(err, errMalformedBody):
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
	case errors.As(err, &verr):
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "Validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, domain.ErrUnknownPreset):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrJobNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
	case errors.As(err, &calcErr):
		log.Error().Err(err).Str("stage", calcErr.Stage).Msg("Tax calculation failed")
		middleware.WriteError(w, http.StatusBadGateway, "Tax calculation failed")
	case errors.Is(err, jobs.ErrQueueClosed):
		middleware.WriteError(w, http.StatusServiceUnavailable, "Job queue is not accepting work")
	case errors.Is(err, context.DeadlineExceeded):
		log.Error().Err(err).Msg("Request timed out")
		middleware.WriteError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		log.Error().Err(err).Msg("Request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		var verr domain.ValidationError
		verr.Add(name, "must be a non-negative integer")
		return 0, &verr
	}
	return n, nil
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Method restricts a handler to one HTTP method.
func Method(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

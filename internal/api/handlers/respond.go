package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/vnvalue/internal/external/engine"
	"github.com/wonny/vnvalue/internal/prefs"
	"github.com/wonny/vnvalue/internal/report"
	"github.com/wonny/vnvalue/internal/session"
	"github.com/wonny/vnvalue/internal/valuation"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondErr maps a domain error to its HTTP status
func respondErr(w http.ResponseWriter, err error) {
	respondError(w, StatusFor(err), err.Error())
}

// StatusFor maps domain errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidSymbol),
		errors.Is(err, engine.ErrInvalidPeriod),
		errors.Is(err, valuation.ErrWeightOutOfRange),
		errors.Is(err, valuation.ErrUnknownModel),
		errors.Is(err, prefs.ErrInvalidTheme),
		errors.Is(err, report.ErrUnknownChart):
		return http.StatusBadRequest

	case errors.Is(err, session.ErrNotLoaded),
		errors.Is(err, session.ErrStale),
		errors.Is(err, valuation.ErrMissingModel),
		errors.Is(err, report.ErrNoData),
		errors.Is(err, report.ErrTooFewPeriods),
		errors.Is(err, report.ErrNoSeries):
		return http.StatusConflict

	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, engine.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

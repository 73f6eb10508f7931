package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/vnvalue/internal/external/engine"
	"github.com/wonny/vnvalue/internal/session"
	"github.com/wonny/vnvalue/internal/valuation"
	"github.com/wonny/vnvalue/pkg/logger"
)

// SessionService is the session surface the HTTP layer drives
type SessionService interface {
	Load(ctx context.Context, symbol string, period engine.Period) error
	Calculate(ctx context.Context) error
	SetWeight(m valuation.Model, pct float64) error
	NormalizeWeights() error
	UpdateAssumptions(fn func(*valuation.Assumptions) error) error
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) func()
}

// SessionHandler handles the valuation session endpoints
// ⭐ SSOT: session mutations from HTTP go through this handler only
type SessionHandler struct {
	session SessionService
	logger  *logger.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(svc SessionService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		session: svc,
		logger:  log,
	}
}

// Get returns the current snapshot
// GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// LoadRequest is the body of a load call
type LoadRequest struct {
	Symbol string `json:"symbol"`
	Period string `json:"period"` // year (default) or quarter
}

// Load fetches company data for a symbol
// POST /api/session/load
func (h *SessionHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	period, err := engine.ParsePeriod(req.Period)
	if err != nil {
		respondErr(w, err)
		return
	}

	if err := h.session.Load(r.Context(), req.Symbol, period); err != nil {
		h.logger.WithError(err).WithSymbol(req.Symbol).Warn("Load request failed")
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// Calculate runs the engine valuation
// POST /api/session/calculate
func (h *SessionHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Calculate(r.Context()); err != nil {
		h.logger.WithError(err).Warn("Calculate request failed")
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// WeightRequest is the body of a weight change
type WeightRequest struct {
	Value *float64 `json:"value"`
}

// SetWeight changes one model weight
// PUT /api/session/weights/{model}
func (h *SessionHandler) SetWeight(w http.ResponseWriter, r *http.Request) {
	m, err := valuation.ParseModel(mux.Vars(r)["model"])
	if err != nil {
		respondErr(w, err)
		return
	}

	var req WeightRequest
	if err := decodeJSON(r, &req); err != nil || req.Value == nil {
		respondError(w, http.StatusBadRequest, "Body must be {\"value\": <percent>}")
		return
	}

	if err := h.session.SetWeight(m, *req.Value); err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// NormalizeWeights resets weights to 25% each
// POST /api/session/weights/normalize
func (h *SessionHandler) NormalizeWeights(w http.ResponseWriter, r *http.Request) {
	if err := h.session.NormalizeWeights(); err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

var errInvalidAssumptions = errors.New("invalid assumptions")

// SetAssumptions merges a partial JSON object onto the current assumptions
// PUT /api/session/assumptions
func (h *SessionHandler) SetAssumptions(w http.ResponseWriter, r *http.Request) {
	var patch json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.session.UpdateAssumptions(func(a *valuation.Assumptions) error {
		dec := json.NewDecoder(bytes.NewReader(patch))
		dec.DisallowUnknownFields()
		if err := dec.Decode(a); err != nil {
			return fmt.Errorf("%w: %v", errInvalidAssumptions, err)
		}
		return nil
	})
	if errors.Is(err, errInvalidAssumptions) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

package handlers

import (
	"net/http"

	"github.com/wonny/vnvalue/internal/prefs"
	"github.com/wonny/vnvalue/pkg/logger"
)

// PreferenceHandler serves the theme preference
type PreferenceHandler struct {
	store  *prefs.Store
	logger *logger.Logger
}

// NewPreferenceHandler creates a new preference handler
func NewPreferenceHandler(store *prefs.Store, log *logger.Logger) *PreferenceHandler {
	return &PreferenceHandler{
		store:  store,
		logger: log,
	}
}

// ThemeBody is the theme request/response body
type ThemeBody struct {
	Theme string `json:"theme"`
}

// GetTheme returns the stored theme
// GET /api/preferences/theme
func (h *PreferenceHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ThemeBody{Theme: string(h.store.Theme(r.Context()))})
}

// SetTheme stores the theme
// PUT /api/preferences/theme
func (h *PreferenceHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var body ThemeBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	theme, err := prefs.ParseTheme(body.Theme)
	if err != nil {
		respondErr(w, err)
		return
	}

	if err := h.store.SetTheme(r.Context(), theme); err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ThemeBody{Theme: string(theme)})
}

// ToggleTheme flips between light and dark
// POST /api/preferences/theme/toggle
func (h *PreferenceHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.store.ToggleTheme(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ThemeBody{Theme: string(theme)})
}

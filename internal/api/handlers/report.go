package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/vnvalue/internal/profile"
	"github.com/wonny/vnvalue/internal/report"
	"github.com/wonny/vnvalue/pkg/logger"
)

// ReportHandler serves rendered reports and charts of the current session
type ReportHandler struct {
	session SessionService
	profile *profile.Profile
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc SessionService, prof *profile.Profile, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		session: svc,
		profile: prof,
		logger:  log,
	}
}

// Report renders the current session
// GET /api/session/report?format=text|markdown|html|json
func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	rep, err := report.Build(snap, h.profile, time.Now())
	if err != nil {
		respondErr(w, err)
		return
	}

	filename := "valuation_" + rep.Symbol + "_" + rep.GeneratedAt.Format("20060102")

	switch format := r.URL.Query().Get("format"); format {
	case "", "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.txt"`)
		w.Write([]byte(report.RenderText(rep)))

	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.md"`)
		w.Write([]byte(report.RenderMarkdown(rep)))

	case "html":
		page, err := report.RenderHTML(rep)
		if err != nil {
			h.logger.WithError(err).Error("HTML report render failed")
			respondError(w, http.StatusInternalServerError, "Failed to render report")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)

	case "json":
		respondJSON(w, http.StatusOK, rep)

	default:
		respondError(w, http.StatusBadRequest, "format must be text, markdown, html or json")
	}
}

// Chart renders one historical chart as PNG
// GET /api/session/charts/{kind}.png
func (h *ReportHandler) Chart(w http.ResponseWriter, r *http.Request) {
	kind, err := report.ParseChartKind(mux.Vars(r)["kind"])
	if err != nil {
		respondErr(w, err)
		return
	}

	snap := h.session.Snapshot()
	if snap.Historical == nil {
		respondErr(w, report.ErrNoData)
		return
	}

	png, err := report.RenderChart(snap.Historical, kind)
	if err != nil {
		respondErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/stats"
)

type StatsHandler struct {
	svc    *stats.Service
	logger *slog.Logger
}

func NewStatsHandler(svc *stats.Service, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{svc: svc, logger: logger}
}

func (h *StatsHandler) Report(w http.ResponseWriter, r *http.Request) {
	var from, to *time.Time
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			writeError(w, h.logger, apperr.New(apperr.KindValidation, "invalid from parameter"))
			return
		}
		from = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseRangeEnd(raw)
		if err != nil {
			writeError(w, h.logger, apperr.New(apperr.KindValidation, "invalid to parameter"))
			return
		}
		to = &t
	}

	report, err := h.svc.Report(r.Context(), from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

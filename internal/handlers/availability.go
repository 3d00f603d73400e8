package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/catalog"
	"github.com/naildiary/booking/internal/model"
	"github.com/naildiary/booking/internal/schedule"
)

type AvailabilityHandler struct {
	policy  *schedule.Policy
	checker *schedule.Checker
	catalog *catalog.Service
	logger  *slog.Logger
}

func NewAvailabilityHandler(policy *schedule.Policy, checker *schedule.Checker, cat *catalog.Service, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{policy: policy, checker: checker, catalog: cat, logger: logger}
}

func (h *AvailabilityHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.policy.Get(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *AvailabilityHandler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg model.AvailabilityConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, h.logger, apperr.New(apperr.KindValidation, "invalid json body"))
		return
	}
	if err := h.policy.Set(r.Context(), cfg); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("availability config updated",
		"weekdays", cfg.Weekdays, "open_hour", cfg.OpenHour, "close_hour", cfg.CloseHour)
	writeJSON(w, http.StatusOK, cfg)
}

// OccupiedSlots lists the taken hour labels for one day, for graying out
// calendar cells on the public booking page.
func (h *AvailabilityHandler) OccupiedSlots(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	day, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		writeError(w, h.logger, apperr.New(apperr.KindValidation, "date must be YYYY-MM-DD"))
		return
	}
	slots, err := h.checker.OccupiedSlots(r.Context(), day)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":     raw,
		"occupied": slots,
	})
}

// Check answers whether a concrete start time is bookable. Policy and
// conflict rejections come back as 200 with the reason, so the booking form
// can show it inline.
func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("datetime"))
	if err != nil {
		writeError(w, h.logger, apperr.New(apperr.KindValidation, "datetime must be an RFC 3339 timestamp"))
		return
	}
	offeringID := q.Get("offeringId")
	if offeringID == "" {
		writeError(w, h.logger, apperr.New(apperr.KindValidation, "offeringId is required"))
		return
	}
	off, err := h.catalog.Resolve(r.Context(), offeringID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.checker.CheckAvailability(r.Context(), start, off.DurationMinutes, ""); err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"available": false,
			"reason":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": true})
}

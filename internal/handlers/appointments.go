package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/booking"
	"github.com/naildiary/booking/internal/model"
)

type AppointmentHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewAppointmentHandler(svc *booking.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

// Create is the public booking entry point. The response includes the
// verification token and PIN exactly once.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		OfferingID  string `json:"offeringId"`
		ScheduledAt string `json:"scheduledAt"`
		Notes       string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, apperr.New(apperr.KindValidation, "invalid json body"))
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		writeError(w, h.logger, apperr.New(apperr.KindValidation, "scheduledAt must be an RFC 3339 timestamp"))
		return
	}

	appt, err := h.svc.Create(r.Context(), booking.CreateInput{
		ClientName:  req.Name,
		ClientEmail: req.Email,
		ClientPhone: req.Phone,
		OfferingID:  req.OfferingID,
		ScheduledAt: scheduledAt,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("appointment booked", "appointment_id", appt.ID, "scheduled_at", appt.ScheduledAt)
	writeJSON(w, http.StatusCreated, toAppointmentJSON(appt, true))
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *AppointmentHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *AppointmentHandler) list(w http.ResponseWriter, r *http.Request, archived bool) {
	filter := model.AppointmentFilter{Archived: archived}
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		status := model.Status(raw)
		filter.Status = &status
	}
	if raw := q.Get("from"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			writeError(w, h.logger, apperr.New(apperr.KindValidation, "invalid from parameter"))
			return
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseRangeEnd(raw)
		if err != nil {
			writeError(w, h.logger, apperr.New(apperr.KindValidation, "invalid to parameter"))
			return
		}
		filter.To = &t
	}

	appts, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentList(appts))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentJSON(appt, false))
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string `json:"name"`
		Email       *string `json:"email"`
		Phone       *string `json:"phone"`
		OfferingID  *string `json:"offeringId"`
		ScheduledAt *string `json:"scheduledAt"`
		Notes       *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, apperr.New(apperr.KindValidation, "invalid json body"))
		return
	}

	in := booking.UpdateInput{
		ClientName:  req.Name,
		ClientEmail: req.Email,
		ClientPhone: req.Phone,
		OfferingID:  req.OfferingID,
		Notes:       req.Notes,
	}
	if req.ScheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ScheduledAt)
		if err != nil {
			writeError(w, h.logger, apperr.New(apperr.KindValidation, "scheduledAt must be an RFC 3339 timestamp"))
			return
		}
		in.ScheduledAt = &t
	}

	appt, err := h.svc.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentJSON(appt, false))
}

func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentJSON(appt, false))
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentJSON(appt, false))
}

func (h *AppointmentHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, apperr.New(apperr.KindValidation, "invalid json body"))
		return
	}
	appt, err := h.svc.SetStatus(r.Context(), r.PathValue("id"), model.Status(req.Status))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentJSON(appt, false))
}

func (h *AppointmentHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Unarchive(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentJSON(appt, false))
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VerifyByToken serves the unauthenticated "is my booking real" lookup.
func (h *AppointmentHandler) VerifyByToken(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.VerifyByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentJSON(appt, true))
}

func (h *AppointmentHandler) VerifyByPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN   string `json:"pin"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, apperr.New(apperr.KindValidation, "invalid json body"))
		return
	}
	appt, err := h.svc.VerifyByPIN(r.Context(), req.PIN, req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentJSON(appt, true))
}

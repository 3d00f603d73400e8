// Package handlers is the HTTP transport: request decoding, parameter
// parsing, and the mapping from tagged domain errors to status codes.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusOf(apperr.KindOf(err))
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindNotFound, apperr.KindOfferingNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindSlotUnavailable:
		return http.StatusConflict
	case apperr.KindPastDate, apperr.KindClosedDay, apperr.KindOutsideHours,
		apperr.KindOfferingInactive, apperr.KindInvalidTransition, apperr.KindNotArchived:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type offeringJSON struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	DurationMinutes int     `json:"durationMinutes"`
	Price           float64 `json:"price"`
	Icon            string  `json:"icon,omitempty"`
	Active          bool    `json:"active"`
}

type appointmentJSON struct {
	ID              string        `json:"id"`
	ClientName      string        `json:"clientName"`
	ClientEmail     string        `json:"clientEmail"`
	ClientPhone     string        `json:"clientPhone"`
	OfferingID      string        `json:"offeringId"`
	Offering        *offeringJSON `json:"offering,omitempty"`
	ScheduledAt     time.Time     `json:"scheduledAt"`
	EndTime         time.Time     `json:"endTime"`
	DurationMinutes int           `json:"durationMinutes"`
	Status          model.Status  `json:"status"`
	Archived        bool          `json:"archived"`
	ArchivedAt      *time.Time    `json:"archivedAt,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`

	// Set only on creation and on verification lookups.
	VerificationToken string `json:"verificationToken,omitempty"`
	VerificationPIN   string `json:"verificationPin,omitempty"`
}

func toOfferingJSON(o model.Offering) offeringJSON {
	return offeringJSON{
		ID:              o.ID,
		Name:            o.Name,
		Description:     o.Description,
		DurationMinutes: o.DurationMinutes,
		Price:           o.Price,
		Icon:            o.Icon,
		Active:          o.Active,
	}
}

func toAppointmentJSON(a model.Appointment, withCredentials bool) appointmentJSON {
	out := appointmentJSON{
		ID:              a.ID,
		ClientName:      a.ClientName,
		ClientEmail:     a.ClientEmail,
		ClientPhone:     a.ClientPhone,
		OfferingID:      a.OfferingID,
		ScheduledAt:     a.ScheduledAt,
		EndTime:         a.EndTime,
		DurationMinutes: a.DurationMinutes,
		Status:          a.Status,
		Archived:        a.Archived,
		ArchivedAt:      a.ArchivedAt,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
	}
	if a.Offering != nil {
		o := toOfferingJSON(*a.Offering)
		out.Offering = &o
	}
	if withCredentials {
		out.VerificationToken = a.Token
		out.VerificationPIN = a.PIN
	}
	return out
}

func toAppointmentList(appts []model.Appointment) []appointmentJSON {
	out := make([]appointmentJSON, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentJSON(a, false))
	}
	return out
}

// parseTimeParam accepts RFC 3339 or a bare date in the server's zone.
func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", raw, time.Local)
}

// parseRangeEnd parses the `to` query parameter. A bare date means the whole
// day: it advances to the next midnight so half-open range filters still
// include every appointment on the named day.
func parseRangeEnd(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	return t.AddDate(0, 0, 1), nil
}

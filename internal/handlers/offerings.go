package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/catalog"
)

type OfferingHandler struct {
	svc    *catalog.Service
	logger *slog.Logger
}

func NewOfferingHandler(svc *catalog.Service, logger *slog.Logger) *OfferingHandler {
	return &OfferingHandler{svc: svc, logger: logger}
}

// ListPublic returns only active offerings, for the booking form.
func (h *OfferingHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *OfferingHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *OfferingHandler) list(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	offerings, err := h.svc.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out := make([]offeringJSON, 0, len(offerings))
	for _, o := range offerings {
		out = append(out, toOfferingJSON(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OfferingHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferingJSON(o))
}

func (h *OfferingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string  `json:"name"`
		Description     string  `json:"description"`
		DurationMinutes int     `json:"durationMinutes"`
		Price           float64 `json:"price"`
		Icon            string  `json:"icon"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, apperr.New(apperr.KindValidation, "invalid json body"))
		return
	}
	o, err := h.svc.Create(r.Context(), catalog.CreateInput{
		Name:            req.Name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Icon:            req.Icon,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOfferingJSON(o))
}

func (h *OfferingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            *string  `json:"name"`
		Description     *string  `json:"description"`
		DurationMinutes *int     `json:"durationMinutes"`
		Price           *float64 `json:"price"`
		Icon            *string  `json:"icon"`
		Active          *bool    `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, apperr.New(apperr.KindValidation, "invalid json body"))
		return
	}
	o, err := h.svc.Update(r.Context(), r.PathValue("id"), catalog.UpdateInput{
		Name:            req.Name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Icon:            req.Icon,
		Active:          req.Active,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferingJSON(o))
}

func (h *OfferingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/model"
	"github.com/naildiary/booking/internal/tips"
)

type TipHandler struct {
	svc    *tips.Service
	logger *slog.Logger
}

func NewTipHandler(svc *tips.Service, logger *slog.Logger) *TipHandler {
	return &TipHandler{svc: svc, logger: logger}
}

type tipJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func toTipJSON(t model.Tip) tipJSON {
	return tipJSON{ID: t.ID, Title: t.Title, Content: t.Content, Active: t.Active, CreatedAt: t.CreatedAt}
}

func (h *TipHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *TipHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *TipHandler) list(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	items, err := h.svc.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out := make([]tipJSON, 0, len(items))
	for _, t := range items {
		out = append(out, toTipJSON(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get serves a single tip. Inactive tips stay readable by direct id; the
// public listing is where the active filter applies.
func (h *TipHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTipJSON(t))
}

func (h *TipHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTipJSON(t))
}

func (h *TipHandler) Update(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTipJSON(t))
}

func (h *TipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TipHandler) decode(w http.ResponseWriter, r *http.Request) (tips.Input, bool) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Active  *bool  `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, apperr.New(apperr.KindValidation, "invalid json body"))
		return tips.Input{}, false
	}
	return tips.Input{Title: req.Title, Content: req.Content, Active: req.Active}, true
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type RenewalService interface {
	GetRenewal(ctx context.Context, id string) (core.PolicyRenewal, error)
	MarkRenewed(ctx context.Context, id string) (core.PolicyView, error)
	SendRenewalReminder(ctx context.Context, id string, kind core.ReminderType) (core.PolicyRenewal, error)
}

type RenewalHandler struct {
	Svc RenewalService
	Log *slog.Logger
}

func NewRenewalHandler(svc RenewalService, log *slog.Logger) *RenewalHandler {
	return &RenewalHandler{Svc: svc, Log: log}
}

func (h *RenewalHandler) Mount(r chi.Router) {
	r.Route("/renewals", func(r chi.Router) {
		r.Get("/{renewal_id}", h.Get)
		r.Post("/{renewal_id}/renew", h.Renew)
		r.Post("/{renewal_id}/reminders", h.Remind)
	})
}

func (h *RenewalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "renewal_id")
	if !ok {
		return
	}
	ren, err := h.Svc.GetRenewal(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, ren)
}

// Renew extends the policy for another term and reopens its payment schedule.
func (h *RenewalHandler) Renew(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "renewal_id")
	if !ok {
		return
	}
	view, err := h.Svc.MarkRenewed(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, view)
}

type reminderRequest struct {
	Type core.ReminderType `json:"type"`
}

// Remind sends a first, second or final renewal reminder.
func (h *RenewalHandler) Remind(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "renewal_id")
	if !ok {
		return
	}
	var in reminderRequest
	if !decode(w, r, &in, false) {
		return
	}
	ren, err := h.Svc.SendRenewalReminder(r.Context(), id, in.Type)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, ren)
}

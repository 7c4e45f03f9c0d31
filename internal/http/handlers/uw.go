package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type UnderwritingService interface {
	GetUnderwriting(ctx context.Context, holderID string) (core.Underwriting, error)
	OverrideRisk(ctx context.Context, holderID string, in core.OverrideInput) (core.PolicyView, error)
	ClearOverride(ctx context.Context, holderID string) (core.PolicyView, error)
	CompleteMedicalExam(ctx context.Context, holderID, remarks string) (core.PolicyView, error)
}

type UnderwritingHandler struct {
	Svc UnderwritingService
	Log *slog.Logger
}

func NewUnderwritingHandler(svc UnderwritingService, log *slog.Logger) *UnderwritingHandler {
	return &UnderwritingHandler{Svc: svc, Log: log}
}

func (h *UnderwritingHandler) Mount(r chi.Router) {
	r.Get("/policies/{id}/underwriting", h.Get)
	r.Put("/policies/{id}/underwriting/override", h.Override)
	r.Delete("/policies/{id}/underwriting/override", h.ClearOverride)
	r.Post("/policies/{id}/underwriting/medical-exam", h.MedicalExam)
}

func (h *UnderwritingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	uw, err := h.Svc.GetUnderwriting(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, uw)
}

// Override pins the risk score set by an underwriter and reprices.
func (h *UnderwritingHandler) Override(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in core.OverrideInput
	if !decode(w, r, &in, false) {
		return
	}
	view, err := h.Svc.OverrideRisk(r.Context(), id, in)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, view)
}

func (h *UnderwritingHandler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	view, err := h.Svc.ClearOverride(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, view)
}

func (h *UnderwritingHandler) MedicalExam(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in remarksRequest
	if !decode(w, r, &in, true) {
		return
	}
	view, err := h.Svc.CompleteMedicalExam(r.Context(), id, in.Remarks)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, view)
}

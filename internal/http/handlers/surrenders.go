package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type SurrenderService interface {
	RequestSurrender(ctx context.Context, holderID, reason string) (core.PolicySurrender, error)
	GetSurrender(ctx context.Context, id string) (core.PolicySurrender, error)
	ApproveSurrender(ctx context.Context, id, remarks string) (core.PolicySurrender, error)
	RejectSurrender(ctx context.Context, id, remarks string) (core.PolicySurrender, error)
	ProcessSurrenderPayment(ctx context.Context, id string) (core.PolicySurrender, error)
}

type SurrenderHandler struct {
	Svc SurrenderService
	Log *slog.Logger
}

func NewSurrenderHandler(svc SurrenderService, log *slog.Logger) *SurrenderHandler {
	return &SurrenderHandler{Svc: svc, Log: log}
}

func (h *SurrenderHandler) Mount(r chi.Router) {
	r.Post("/policies/{id}/surrenders", h.Request)
	r.Route("/surrenders", func(r chi.Router) {
		r.Get("/{surrender_id}", h.Get)
		r.Post("/{surrender_id}/approve", h.Approve)
		r.Post("/{surrender_id}/reject", h.Reject)
		r.Post("/{surrender_id}/process", h.Process)
	})
}

type surrenderRequest struct {
	Reason string `json:"reason"`
}

type remarksRequest struct {
	Remarks string `json:"remarks"`
}

// Request opens a voluntary surrender with the values as of today.
// 201: JSON; 400: not eligible; 409: a surrender is already open.
func (h *SurrenderHandler) Request(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in surrenderRequest
	if !decode(w, r, &in, true) {
		return
	}
	sur, err := h.Svc.RequestSurrender(r.Context(), id, in.Reason)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, sur)
}

func (h *SurrenderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "surrender_id")
	if !ok {
		return
	}
	sur, err := h.Svc.GetSurrender(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, sur)
}

func (h *SurrenderHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Svc.ApproveSurrender)
}

func (h *SurrenderHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Svc.RejectSurrender)
}

// Process pays out an approved surrender and settles outstanding loans.
func (h *SurrenderHandler) Process(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "surrender_id")
	if !ok {
		return
	}
	sur, err := h.Svc.ProcessSurrenderPayment(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, sur)
}

func (h *SurrenderHandler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, remarks string) (core.PolicySurrender, error)) {
	id, ok := pathID(w, r, "surrender_id")
	if !ok {
		return
	}
	var in remarksRequest
	if !decode(w, r, &in, true) {
		return
	}
	sur, err := fn(r.Context(), id, in.Remarks)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, sur)
}

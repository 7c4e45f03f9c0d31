package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type PaymentService interface {
	AddPayment(ctx context.Context, holderID string, amount decimal.Decimal) (core.PaymentResult, error)
	Fine(ctx context.Context, holderID string) (core.FineView, error)
	SurrenderValues(ctx context.Context, holderID string) (core.SurrenderValues, error)
}

type PaymentHandler struct {
	Svc PaymentService
	Log *slog.Logger
}

func NewPaymentHandler(svc PaymentService, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{Svc: svc, Log: log}
}

func (h *PaymentHandler) Mount(r chi.Router) {
	r.Post("/policies/{id}/payments", h.Add)
	r.Get("/policies/{id}/fine", h.Fine)
	r.Get("/policies/{id}/surrender-values", h.SurrenderValues)
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Add applies a premium payment to the current record.
// 201: receipt JSON; 400: non-positive amount or overpayment; 409: policy locked.
func (h *PaymentHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in amountRequest
	if !decode(w, r, &in, false) {
		return
	}
	res, err := h.Svc.AddPayment(r.Context(), id, in.Amount)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, res)
}

// Fine shows the fine that would apply to the current record today.
func (h *PaymentHandler) Fine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	fine, err := h.Svc.Fine(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, fine)
}

func (h *PaymentHandler) SurrenderValues(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	v, err := h.Svc.SurrenderValues(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, v)
}

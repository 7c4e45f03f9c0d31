package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type QuoteService interface {
	QuotePremium(ctx context.Context, in core.QuoteInput) (core.PremiumQuote, error)
}

type QuoteHandler struct {
	Svc QuoteService
	Log *slog.Logger
}

func NewQuoteHandler(svc QuoteService, log *slog.Logger) *QuoteHandler {
	return &QuoteHandler{Svc: svc, Log: log}
}

func (h *QuoteHandler) Mount(r chi.Router) {
	r.Post("/quotes", h.Create)
}

// Create prices a prospective policy without storing anything.
// 200: premium breakdown; 400: validation; 404: product; 422: missing rate band.
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in core.QuoteInput
	if !decode(w, r, &in, false) {
		return
	}
	q, err := h.Svc.QuotePremium(r.Context(), in)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, q)
}

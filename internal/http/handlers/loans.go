package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type LoanService interface {
	MaxLoan(ctx context.Context, holderID string) (core.LoanQuote, error)
	CreateLoan(ctx context.Context, holderID string, amount decimal.Decimal) (core.Loan, error)
	GetLoan(ctx context.Context, loanID string) (core.LoanView, error)
	AccrueInterest(ctx context.Context, loanID string) (core.Loan, error)
	RepayLoan(ctx context.Context, loanID string, in core.RepaymentInput) (core.RepaymentResult, error)
}

type LoanHandler struct {
	Svc LoanService
	Log *slog.Logger
}

func NewLoanHandler(svc LoanService, log *slog.Logger) *LoanHandler {
	return &LoanHandler{Svc: svc, Log: log}
}

func (h *LoanHandler) Mount(r chi.Router) {
	r.Get("/policies/{id}/loans/max", h.Max)
	r.Post("/policies/{id}/loans", h.Create)
	r.Route("/loans", func(r chi.Router) {
		r.Get("/{loan_id}", h.Get)
		r.Post("/{loan_id}/accrue", h.Accrue)
		r.Post("/{loan_id}/repayments", h.Repay)
	})
}

// Max returns the largest loan the policy can take today.
func (h *LoanHandler) Max(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q, err := h.Svc.MaxLoan(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, q)
}

// Create opens a loan against the policy's surrender value.
// 201: JSON; 400: not eligible or over the maximum.
func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in amountRequest
	if !decode(w, r, &in, false) {
		return
	}
	loan, err := h.Svc.CreateLoan(r.Context(), id, in.Amount)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, loan)
}

func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loan_id")
	if !ok {
		return
	}
	view, err := h.Svc.GetLoan(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, view)
}

func (h *LoanHandler) Accrue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loan_id")
	if !ok {
		return
	}
	loan, err := h.Svc.AccrueInterest(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, loan)
}

// Repay records a repayment. Sending the same id again replays the first
// result with 200 instead of 201.
func (h *LoanHandler) Repay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loan_id")
	if !ok {
		return
	}
	var in core.RepaymentInput
	if !decode(w, r, &in, false) {
		return
	}
	res, err := h.Svc.RepayLoan(r.Context(), id, in)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, h.Log, status, res)
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type ClaimService interface {
	FileClaim(ctx context.Context, holderID string, in core.ClaimInput) (core.ClaimRequest, error)
	GetClaim(ctx context.Context, id string) (core.ClaimRequest, error)
	ListClaims(ctx context.Context, f core.ClaimFilter) ([]core.ClaimRequest, error)
	ApproveClaim(ctx context.Context, id, remarks string) (core.ClaimRequest, error)
	RejectClaim(ctx context.Context, id, remarks string) (core.ClaimRequest, error)
	StartClaimProcessing(ctx context.Context, id string) (core.ClaimRequest, error)
	CompleteClaimProcessing(ctx context.Context, id string) (core.ClaimRequest, error)
	PayClaim(ctx context.Context, id string) (core.ClaimRequest, error)
}

type ClaimHandler struct {
	Svc ClaimService
	Log *slog.Logger
}

func NewClaimHandler(svc ClaimService, log *slog.Logger) *ClaimHandler {
	return &ClaimHandler{Svc: svc, Log: log}
}

func (h *ClaimHandler) Mount(r chi.Router) {
	r.Post("/policies/{id}/claims", h.File)
	r.Route("/claims", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{claim_id}", h.Get)
		r.Post("/{claim_id}/approve", h.Approve)
		r.Post("/{claim_id}/reject", h.Reject)
		r.Post("/{claim_id}/processing", h.StartProcessing)
		r.Post("/{claim_id}/complete", h.CompleteProcessing)
		r.Post("/{claim_id}/pay", h.Pay)
	})
}

// File opens a claim against an active policy.
// 201: JSON; 400: invalid reason or amount, or policy not in force.
func (h *ClaimHandler) File(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in core.ClaimInput
	if !decode(w, r, &in, false) {
		return
	}
	c, err := h.Svc.FileClaim(r.Context(), id, in)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, c)
}

// List returns claims filtered by ?policy_holder_id= and ?status=.
func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	claims, err := h.Svc.ListClaims(r.Context(), core.ClaimFilter{
		PolicyHolderID: q.Get("policy_holder_id"),
		Status:         core.ClaimStatus(q.Get("status")),
	})
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, claims)
}

func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.Svc.GetClaim)
}

func (h *ClaimHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Svc.ApproveClaim)
}

func (h *ClaimHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Svc.RejectClaim)
}

func (h *ClaimHandler) StartProcessing(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.Svc.StartClaimProcessing)
}

func (h *ClaimHandler) CompleteProcessing(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.Svc.CompleteClaimProcessing)
}

// Pay records the payout of a completed claim.
func (h *ClaimHandler) Pay(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.Svc.PayClaim)
}

func (h *ClaimHandler) step(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (core.ClaimRequest, error)) {
	id, ok := pathID(w, r, "claim_id")
	if !ok {
		return
	}
	c, err := fn(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, c)
}

func (h *ClaimHandler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, remarks string) (core.ClaimRequest, error)) {
	id, ok := pathID(w, r, "claim_id")
	if !ok {
		return
	}
	var in remarksRequest
	if !decode(w, r, &in, true) {
		return
	}
	c, err := fn(r.Context(), id, in.Remarks)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, c)
}

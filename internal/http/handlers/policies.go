package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

// PolicyService is the part of the policy lifecycle the policy routes use.
type PolicyService interface {
	Register(ctx context.Context, in core.RegisterInput) (core.PolicyHolder, error)
	Get(ctx context.Context, id string) (core.PolicyView, error)
	List(ctx context.Context, filter core.PolicyHolderFilter, limit, offset int) ([]core.PolicyHolder, int64, error)
	UpdateProfile(ctx context.Context, id string, in core.ProfileUpdate) (core.PolicyView, error)
	Approve(ctx context.Context, id string) (core.PolicyView, error)
	Recompute(ctx context.Context, id string) (core.PolicyView, error)
	Evaluate(ctx context.Context, id string) (core.Evaluation, error)
	CheckPolicyExpiry(ctx context.Context, id string) (bool, error)
	UpdateAnniversaryBonus(ctx context.Context, id string) (core.BonusResult, error)
}

type PolicyHandler struct {
	Svc PolicyService
	Log *slog.Logger
}

func NewPolicyHandler(svc PolicyService, log *slog.Logger) *PolicyHandler {
	return &PolicyHandler{Svc: svc, Log: log}
}

func (h *PolicyHandler) Mount(r chi.Router) {
	r.Post("/policies", h.Register)
	r.Get("/policies", h.List)
	r.Get("/policies/{id}", h.Get)
	r.Patch("/policies/{id}", h.UpdateProfile)
	r.Post("/policies/{id}/approve", h.Approve)
	r.Post("/policies/{id}/recompute", h.Recompute)
	r.Post("/policies/{id}/evaluate", h.Evaluate)
	r.Post("/policies/{id}/expiry-check", h.CheckExpiry)
	r.Post("/policies/{id}/bonus", h.UpdateBonus)
}

// Register creates a pending policy holder with a policy number.
// 201: JSON; 400: bad JSON/validation; 404: product or agent not found; 422: missing rates.
func (h *PolicyHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in core.RegisterInput
	if !decode(w, r, &in, false) {
		return
	}
	holder, err := h.Svc.Register(r.Context(), in)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, holder)
}

// Get returns the holder with its current payment, loans, values and cases.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	view, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, view)
}

// List returns policy holders filtered by status, product_id or agent_id.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.PolicyHolderFilter{
		Status:    core.PolicyStatus(q.Get("status")),
		ProductID: q.Get("product_id"),
		AgentID:   q.Get("agent_id"),
	}
	limit, offset := pagination(r)

	holders, total, err := h.Svc.List(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	if holders == nil {
		holders = []core.PolicyHolder{}
	}
	writeJSON(w, h.Log, http.StatusOK, map[string]any{
		"items":  holders,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// UpdateProfile patches holder details; contract changes reprice the policy.
// 409: contract fields on a policy that is no longer pending.
func (h *PolicyHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in core.ProfileUpdate
	if !decode(w, r, &in, false) {
		return
	}
	view, err := h.Svc.UpdateProfile(r.Context(), id, in)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, view)
}

func (h *PolicyHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.viewAction(w, r, h.Svc.Approve)
}

func (h *PolicyHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	h.viewAction(w, r, h.Svc.Recompute)
}

// Evaluate runs the status state machine for one policy now.
func (h *PolicyHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ev, err := h.Svc.Evaluate(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, ev)
}

func (h *PolicyHandler) CheckExpiry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	expired, err := h.Svc.CheckPolicyExpiry(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, map[string]bool{"expired": expired})
}

// UpdateBonus credits the anniversary bonus when one is due.
func (h *PolicyHandler) UpdateBonus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.Svc.UpdateAnniversaryBonus(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *PolicyHandler) viewAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (core.PolicyView, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	view, err := fn(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, view)
}

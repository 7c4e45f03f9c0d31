package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrKriegler/go-policyadmin/internal/core"
	"github.com/MrKriegler/go-policyadmin/pkg/problem"
)

type AgentService interface {
	SaveAgent(ctx context.Context, a core.SalesAgent) (core.SalesAgent, error)
	GetAgent(ctx context.Context, id string) (core.SalesAgent, error)
	AgentReports(ctx context.Context, date time.Time) ([]core.AgentReport, error)

	SubmitAgentApplication(ctx context.Context, in core.AgentApplicationInput) (core.AgentApplication, error)
	GetAgentApplication(ctx context.Context, id string) (core.AgentApplication, error)
	ListAgentApplications(ctx context.Context, status core.ApplicationStatus) ([]core.AgentApplication, error)
	ApproveAgentApplication(ctx context.Context, id, remarks string) (core.AgentApplication, core.SalesAgent, error)
	RejectAgentApplication(ctx context.Context, id, remarks string) (core.AgentApplication, error)
}

type AgentHandler struct {
	Svc   AgentService
	Log   *slog.Logger
	Clock func() time.Time
}

func NewAgentHandler(svc AgentService, log *slog.Logger) *AgentHandler {
	return &AgentHandler{Svc: svc, Log: log, Clock: time.Now}
}

func (h *AgentHandler) Mount(r chi.Router) {
	r.Route("/agents", func(r chi.Router) {
		r.Get("/reports", h.Reports)
		r.Get("/{agent_id}", h.Get)
		r.Put("/{agent_id}", h.Save)
	})
	r.Route("/agent-applications", func(r chi.Router) {
		r.Post("/", h.Submit)
		r.Get("/", h.ListApplications)
		r.Get("/{application_id}", h.GetApplication)
		r.Post("/{application_id}/approve", h.ApproveApplication)
		r.Post("/{application_id}/reject", h.RejectApplication)
	})
}

func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "agent_id")
	if !ok {
		return
	}
	a, err := h.Svc.GetAgent(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, a)
}

func (h *AgentHandler) Save(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "agent_id")
	if !ok {
		return
	}
	var a core.SalesAgent
	if !decode(w, r, &a, false) {
		return
	}
	a.ID = id
	saved, err := h.Svc.SaveAgent(r.Context(), a)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, saved)
}

// Reports lists the daily commission reports for ?date=YYYY-MM-DD, today by default.
func (h *AgentHandler) Reports(w http.ResponseWriter, r *http.Request) {
	date := h.Clock().UTC()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse(time.DateOnly, d)
		if err != nil {
			problem.Write(w, http.StatusBadRequest, "Invalid Date", fmt.Sprintf("date must be YYYY-MM-DD, got %q", d))
			return
		}
		date = parsed
	}
	reports, err := h.Svc.AgentReports(r.Context(), date)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, reports)
}

func (h *AgentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in core.AgentApplicationInput
	if !decode(w, r, &in, false) {
		return
	}
	a, err := h.Svc.SubmitAgentApplication(r.Context(), in)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, a)
}

// ListApplications lists applications, filtered by ?status= when given.
func (h *AgentHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.Svc.ListAgentApplications(r.Context(), core.ApplicationStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, apps)
}

func (h *AgentHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "application_id")
	if !ok {
		return
	}
	a, err := h.Svc.GetAgentApplication(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, a)
}

type approvedApplication struct {
	Application core.AgentApplication `json:"application"`
	Agent       core.SalesAgent       `json:"agent"`
}

// ApproveApplication approves and returns the sales agent it created.
// 409: an agent with the derived code already exists.
func (h *AgentHandler) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "application_id")
	if !ok {
		return
	}
	var in remarksRequest
	if !decode(w, r, &in, true) {
		return
	}
	a, agent, err := h.Svc.ApproveAgentApplication(r.Context(), id, in.Remarks)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, approvedApplication{Application: a, Agent: agent})
}

func (h *AgentHandler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "application_id")
	if !ok {
		return
	}
	var in remarksRequest
	if !decode(w, r, &in, true) {
		return
	}
	a, err := h.Svc.RejectAgentApplication(r.Context(), id, in.Remarks)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, a)
}

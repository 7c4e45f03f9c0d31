package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type BatchRunner interface {
	Run(ctx context.Context, job core.BatchJob) (core.BatchResult, error)
}

// BatchHandler lets operators re-run a daily job on demand.
type BatchHandler struct {
	Runner BatchRunner
	Log    *slog.Logger
}

func NewBatchHandler(runner BatchRunner, log *slog.Logger) *BatchHandler {
	return &BatchHandler{Runner: runner, Log: log}
}

func (h *BatchHandler) Mount(r chi.Router) {
	r.Get("/batch/jobs", h.List)
	r.Post("/batch/jobs/{job}", h.Run)
}

func (h *BatchHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.Log, http.StatusOK, core.AllJobs)
}

// Run executes the job synchronously and returns its counts.
// 400: unknown job; 409: the job is already running.
func (h *BatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	job, ok := pathID(w, r, "job")
	if !ok {
		return
	}
	res, err := h.Runner.Run(r.Context(), core.BatchJob(job))
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

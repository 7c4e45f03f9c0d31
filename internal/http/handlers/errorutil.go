package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrKriegler/go-policyadmin/internal/core"
	"github.com/MrKriegler/go-policyadmin/pkg/problem"
)

func writeError(r *http.Request, log *slog.Logger, w http.ResponseWriter, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, core.ErrNotFound):
		log.WarnContext(ctx, "resource not found", "err", err)
		problem.WriteFor(w, r, http.StatusNotFound, "Not Found", err.Error())

	case errors.Is(err, core.ErrValidation):
		log.WarnContext(ctx, "validation failed", "err", err)
		problem.WriteFor(w, r, http.StatusBadRequest, "Validation Error", err.Error())

	case errors.Is(err, core.ErrCalculation):
		log.WarnContext(ctx, "calculation failed", "err", err)
		problem.WriteFor(w, r, http.StatusUnprocessableEntity, "Calculation Error", err.Error())

	case errors.Is(err, core.ErrLocked):
		log.WarnContext(ctx, "record locked", "err", err)
		problem.WriteFor(w, r, http.StatusConflict, "Record Locked", "The policy is being updated by another request. Retry shortly.")

	case errors.Is(err, core.ErrConflict):
		log.WarnContext(ctx, "resource conflict", "err", err)
		problem.WriteFor(w, r, http.StatusConflict, "Conflict", err.Error())

	case errors.Is(err, core.ErrUnauthorized):
		log.WarnContext(ctx, "unauthorized request", "err", err)
		problem.WriteFor(w, r, http.StatusUnauthorized, "Unauthorized", err.Error())

	case errors.Is(err, core.ErrForbidden):
		log.WarnContext(ctx, "forbidden operation", "err", err)
		problem.WriteFor(w, r, http.StatusForbidden, "Forbidden", err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		log.ErrorContext(ctx, "operation timeout", "err", err)
		problem.WriteFor(w, r, http.StatusGatewayTimeout, "Timeout", "Operation took too long.")

	default:
		log.ErrorContext(ctx, "internal server error", "err", err)
		problem.WriteFor(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred.")
	}
}

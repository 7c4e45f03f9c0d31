package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrKriegler/go-policyadmin/pkg/problem"
)

type Mountable interface {
	Mount(r chi.Router)
}

const (
	defaultLimit = 20
	maxLimit     = 200
)

// decode reads a JSON body into dst and writes a 400 problem on failure.
// An empty body is accepted when allowEmpty is set.
func decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	problem.Write(w, http.StatusBadRequest, "Invalid JSON", fmt.Sprintf("Body could not be decoded: %v", err))
	return false
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "err", err)
	}
}

// pathID returns the {name} URL parameter, writing a 400 problem when empty.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := chi.URLParam(r, name)
	if id == "" {
		problem.Write(w, http.StatusBadRequest, "Missing Parameter", fmt.Sprintf("Path parameter %s is required.", name))
		return "", false
	}
	return id, true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultLimit
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = min(l, maxLimit)
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}

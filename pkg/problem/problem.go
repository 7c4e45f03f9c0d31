// Package problem writes RFC 7807 error bodies.
package problem

import (
	"encoding/json"
	"net/http"
	"strings"
)

const ContentType = "application/problem+json"

type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// New builds a problem whose type is derived from the title, so
// "Record Locked" becomes "/problems/record-locked".
func New(status int, title, detail string) Problem {
	return Problem{
		Type:   TypeFor(title),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

func TypeFor(title string) string {
	slug := strings.Join(strings.Fields(strings.ToLower(title)), "-")
	if slug == "" {
		return "about:blank"
	}
	return "/problems/" + slug
}

func Write(w http.ResponseWriter, status int, title, detail string) {
	WriteProblem(w, New(status, title, detail))
}

// WriteFor is Write with the request path as the instance.
func WriteFor(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	p := New(status, title, detail)
	p.Instance = r.URL.Path
	WriteProblem(w, p)
}

func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

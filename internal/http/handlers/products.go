package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

// RateHandler serves products and the rate bands pricing reads from.
type RateHandler struct {
	Svc core.RateService
	Log *slog.Logger
}

func NewRateHandler(svc core.RateService, log *slog.Logger) *RateHandler {
	return &RateHandler{Svc: svc, Log: log}
}

func (h *RateHandler) Mount(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{product_id}", h.GetProduct)
		r.Put("/{product_id}", h.SaveProduct)
	})
	r.Route("/rate-bands", func(r chi.Router) {
		r.Get("/", h.ListBands)
		r.Post("/", h.AddBand)
		r.Delete("/{band_id}", h.RemoveBand)
	})
}

func (h *RateHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Svc.ListProducts(r.Context())
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	if products == nil {
		products = []core.Product{}
	}
	writeJSON(w, h.Log, http.StatusOK, products)
}

func (h *RateHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}
	p, err := h.Svc.GetProduct(r.Context(), id)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, p)
}

// SaveProduct creates or replaces a product. The path id wins over the body.
func (h *RateHandler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}
	var p core.Product
	if !decode(w, r, &p, false) {
		return
	}
	p.ID = id
	saved, err := h.Svc.SaveProduct(r.Context(), p)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, saved)
}

// ListBands returns every band, or one table's with ?table=.
func (h *RateHandler) ListBands(w http.ResponseWriter, r *http.Request) {
	bands, err := h.Svc.ListBands(r.Context(), core.RateTable(r.URL.Query().Get("table")))
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	if bands == nil {
		bands = []core.RateBand{}
	}
	writeJSON(w, h.Log, http.StatusOK, bands)
}

// AddBand inserts a band. 400: overlaps an existing band of the same table and key.
func (h *RateHandler) AddBand(w http.ResponseWriter, r *http.Request) {
	var b core.RateBand
	if !decode(w, r, &b, false) {
		return
	}
	saved, err := h.Svc.AddBand(r.Context(), b)
	if err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, saved)
}

func (h *RateHandler) RemoveBand(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "band_id")
	if !ok {
		return
	}
	if err := h.Svc.RemoveBand(r.Context(), id); err != nil {
		writeError(r, h.Log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

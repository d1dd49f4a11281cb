package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/jsvoboda/memorymap/internal/gallery"
	"github.com/jsvoboda/memorymap/internal/store"
)

// PreviewsHandler serves the per-country map-pin aggregates.
type PreviewsHandler struct {
	svc *gallery.Service
	log *zap.Logger
}

// NewPreviewsHandler creates a new previews handler.
func NewPreviewsHandler(svc *gallery.Service, logger *zap.Logger) *PreviewsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreviewsHandler{svc: svc, log: logger}
}

// List returns one preview entry per country with photos.
func (h *PreviewsHandler) List(w http.ResponseWriter, r *http.Request) {
	previews, err := h.svc.CountryPreviews(r.Context())
	if err != nil {
		h.log.Error("loading previews failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load previews")
		return
	}
	if previews == nil {
		previews = []store.CountryPreview{}
	}
	respondJSON(w, http.StatusOK, previews)
}

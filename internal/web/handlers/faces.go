package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jsvoboda/memorymap/internal/gallery"
	"github.com/jsvoboda/memorymap/internal/store"
)

// FacesHandler serves face detection records, tagging and similarity search.
type FacesHandler struct {
	svc   *gallery.Service
	faces store.FaceReader
	log   *zap.Logger
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(svc *gallery.Service, faces store.FaceReader, logger *zap.Logger) *FacesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacesHandler{svc: svc, faces: faces, log: logger}
}

// GetPhotoFaces returns the stored detection records of a photo without
// triggering detection.
func (h *FacesHandler) GetPhotoFaces(w http.ResponseWriter, r *http.Request) {
	faces, err := h.faces.GetFacesByPhoto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.log.Error("loading photo faces failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load faces")
		return
	}
	if faces == nil {
		faces = []store.DetectedFace{}
	}
	respondJSON(w, http.StatusOK, faces)
}

// DetectFaces returns the photo's detection records, running lazy detection
// first for photos that predate face support.
func (h *FacesHandler) DetectFaces(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	faces, err := h.svc.DetectPhotoFaces(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		h.log.Error("face detection failed", zap.String("photoId", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "face detection failed")
		return
	}
	respondJSON(w, http.StatusOK, faces)
}

type assignRequest struct {
	MemberID string `json:"memberId"`
}

// Assign confirms (or, with an empty memberId, clears) the identity of a
// detected face.
func (h *FacesHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	faceID := chi.URLParam(r, "id")
	err := h.svc.AssignFace(r.Context(), faceID, req.MemberID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "face or member not found")
		return
	}
	if err != nil {
		h.log.Error("face assignment failed", zap.String("faceId", faceID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to assign face")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type tagRequest struct {
	MemberID string `json:"memberId"`
}

// TagMember tags a member on a photo, running lazy detection when needed.
func (h *FacesHandler) TagMember(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.MemberID == "" {
		respondError(w, http.StatusBadRequest, "memberId is required")
		return
	}

	photoID := chi.URLParam(r, "id")
	err := h.svc.TagMember(r.Context(), photoID, req.MemberID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "photo or member not found")
		return
	}
	if err != nil {
		h.log.Error("tagging member failed", zap.String("photoId", photoID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to tag member")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RemoveTag removes a member's tag from a photo.
func (h *FacesHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "id")
	memberID := chi.URLParam(r, "memberId")

	err := h.svc.RemoveMemberTag(r.Context(), photoID, memberID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		h.log.Error("removing tag failed", zap.String("photoId", photoID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to remove tag")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type similarRequest struct {
	FaceID string `json:"faceId"`
	Limit  int    `json:"limit"`
}

// SimilarFace is one similarity search result.
type SimilarFace struct {
	Face     store.DetectedFace `json:"face"`
	Distance float64            `json:"distance"`
}

// Similar finds detections across the library nearest to a given face.
func (h *FacesHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.FaceID == "" {
		respondError(w, http.StatusBadRequest, "faceId is required")
		return
	}

	faces, distances, err := h.svc.SimilarFaces(r.Context(), req.FaceID, req.Limit)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "face not found")
		return
	}
	if err != nil {
		h.log.Error("similarity search failed", zap.String("faceId", req.FaceID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "similarity search failed")
		return
	}

	results := make([]SimilarFace, len(faces))
	for i := range faces {
		results[i] = SimilarFace{Face: faces[i], Distance: distances[i]}
	}
	respondJSON(w, http.StatusOK, results)
}

// Reconcile recomputes face tags from assignments across all photos.
func (h *FacesHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ReconcileAllPhotoTags(r.Context())
	if err != nil {
		h.log.Error("tag reconciliation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"photos": n})
}

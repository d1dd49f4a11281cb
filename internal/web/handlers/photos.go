package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jsvoboda/memorymap/internal/countries"
	"github.com/jsvoboda/memorymap/internal/gallery"
	"github.com/jsvoboda/memorymap/internal/store"
)

// maxUploadMemory bounds the in-memory part of multipart parsing.
const maxUploadMemory = 32 << 20

// PhotosHandler serves photo CRUD and the multipart upload endpoint.
type PhotosHandler struct {
	svc    *gallery.Service
	photos store.PhotoWriter
	log    *zap.Logger
}

// NewPhotosHandler creates a new photos handler.
func NewPhotosHandler(svc *gallery.Service, photos store.PhotoWriter, logger *zap.Logger) *PhotosHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhotosHandler{svc: svc, photos: photos, log: logger}
}

// UploadResponse reports a batch upload outcome.
type UploadResponse struct {
	Photos   []store.Photo `json:"photos"`
	Uploaded int           `json:"uploaded"`
	Failed   int           `json:"failed"`
}

// Upload accepts a multipart batch: a "country" field plus one or more
// "photos" files. Files are processed one at a time; a failing file does not
// abort the rest.
func (h *PhotosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	countryCode := strings.ToUpper(strings.TrimSpace(r.FormValue("country")))
	if !countries.ValidCode(countryCode) {
		respondError(w, http.StatusBadRequest, "invalid country code "+sanitizeForLog(countryCode))
		return
	}

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no photos in request")
		return
	}

	uploads := make([]gallery.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			h.log.Warn("opening multipart file failed",
				zap.String("filename", sanitizeForLog(fh.Filename)), zap.Error(err))
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.log.Warn("reading multipart file failed",
				zap.String("filename", sanitizeForLog(fh.Filename)), zap.Error(err))
			continue
		}
		uploads = append(uploads, gallery.Upload{Filename: fh.Filename, Data: data})
	}

	photos, err := h.svc.UploadPhotos(r.Context(), countryCode, uploads)
	if err != nil {
		h.log.Error("photo upload failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	respondJSON(w, http.StatusCreated, UploadResponse{
		Photos:   photos,
		Uploaded: len(photos),
		Failed:   len(files) - len(photos),
	})
}

// List returns photos, optionally filtered by ?country=XX, newest first.
func (h *PhotosHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		photos []store.Photo
		err    error
	)
	if country := r.URL.Query().Get("country"); country != "" {
		country = strings.ToUpper(country)
		if !countries.ValidCode(country) {
			respondError(w, http.StatusBadRequest, "invalid country code "+sanitizeForLog(country))
			return
		}
		photos, err = h.photos.ListPhotosByCountry(r.Context(), country)
	} else {
		photos, err = h.photos.ListPhotos(r.Context())
	}
	if err != nil {
		h.log.Error("listing photos failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}
	if photos == nil {
		photos = []store.Photo{}
	}
	respondJSON(w, http.StatusOK, photos)
}

// Get returns one photo document.
func (h *PhotosHandler) Get(w http.ResponseWriter, r *http.Request) {
	photo, err := h.photos.GetPhoto(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		h.log.Error("loading photo failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load photo")
		return
	}
	respondJSON(w, http.StatusOK, photo)
}

type updatePhotoRequest struct {
	Caption *string `json:"caption"`
}

// Update patches mutable photo metadata. Currently that is the caption.
func (h *PhotosHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updatePhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	photo, err := h.photos.GetPhoto(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load photo")
		return
	}

	if req.Caption != nil {
		photo.Caption = *req.Caption
	}
	if err := h.photos.UpdatePhoto(r.Context(), photo); err != nil {
		h.log.Error("updating photo failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update photo")
		return
	}
	respondJSON(w, http.StatusOK, photo)
}

// Delete removes a photo, its blob and its face records.
func (h *PhotosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.svc.DeletePhoto(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		h.log.Error("deleting photo failed", zap.String("photoId", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete photo")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jsvoboda/memorymap/internal/countries"
	"github.com/jsvoboda/memorymap/internal/store"
)

// TripsHandler manages the profile document and its trip collection. Every
// mutation rewrites the whole document.
type TripsHandler struct {
	profiles store.ProfileRepository
	log      *zap.Logger
}

// NewTripsHandler creates a new trips handler.
func NewTripsHandler(profiles store.ProfileRepository, logger *zap.Logger) *TripsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TripsHandler{profiles: profiles, log: logger}
}

// GetProfile returns the profile. A map that was never configured comes back
// as an empty profile rather than a 404.
func (h *TripsHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetProfile(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		respondJSON(w, http.StatusOK, &store.Profile{Trips: []store.Trip{}})
		return
	}
	if err != nil {
		h.log.Error("loading profile failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// UpdateProfile overwrites the whole profile document.
func (h *TripsHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var profile store.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	for i := range profile.Trips {
		if !normalizeTrip(&profile.Trips[i]) {
			respondError(w, http.StatusBadRequest, "invalid country code "+sanitizeForLog(profile.Trips[i].CountryCode))
			return
		}
	}
	if profile.Trips == nil {
		profile.Trips = []store.Trip{}
	}

	if err := h.profiles.SaveProfile(r.Context(), &profile); err != nil {
		h.log.Error("saving profile failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	respondJSON(w, http.StatusOK, &profile)
}

// AddTrip appends a trip. A trip for the same country already on the map is
// suppressed, not duplicated.
func (h *TripsHandler) AddTrip(w http.ResponseWriter, r *http.Request) {
	var trip store.Trip
	if err := json.NewDecoder(r.Body).Decode(&trip); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if !normalizeTrip(&trip) {
		respondError(w, http.StatusBadRequest, "invalid country code "+sanitizeForLog(trip.CountryCode))
		return
	}

	profile, err := h.loadOrEmpty(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	for _, t := range profile.Trips {
		if t.CountryCode == trip.CountryCode {
			respondJSON(w, http.StatusOK, profile)
			return
		}
	}

	profile.Trips = append(profile.Trips, trip)
	if err := h.profiles.SaveProfile(r.Context(), profile); err != nil {
		h.log.Error("saving profile failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	respondJSON(w, http.StatusCreated, profile)
}

// UpdateTrip replaces the trip identified by its country code.
func (h *TripsHandler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	var trip store.Trip
	if err := json.NewDecoder(r.Body).Decode(&trip); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	trip.CountryCode = code
	if !normalizeTrip(&trip) {
		respondError(w, http.StatusBadRequest, "invalid country code "+sanitizeForLog(code))
		return
	}

	profile, err := h.loadOrEmpty(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	for i := range profile.Trips {
		if profile.Trips[i].CountryCode == code {
			profile.Trips[i] = trip
			if err := h.profiles.SaveProfile(r.Context(), profile); err != nil {
				h.log.Error("saving profile failed", zap.Error(err))
				respondError(w, http.StatusInternalServerError, "failed to save profile")
				return
			}
			respondJSON(w, http.StatusOK, profile)
			return
		}
	}
	respondError(w, http.StatusNotFound, "trip not found")
}

// DeleteTrip removes the trip identified by its country code. Photos for the
// country are kept.
func (h *TripsHandler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	profile, err := h.loadOrEmpty(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	trips := profile.Trips[:0]
	removed := false
	for _, t := range profile.Trips {
		if t.CountryCode == code {
			removed = true
			continue
		}
		trips = append(trips, t)
	}
	if !removed {
		respondError(w, http.StatusNotFound, "trip not found")
		return
	}

	profile.Trips = trips
	if err := h.profiles.SaveProfile(r.Context(), profile); err != nil {
		h.log.Error("saving profile failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *TripsHandler) loadOrEmpty(r *http.Request) (*store.Profile, error) {
	profile, err := h.profiles.GetProfile(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		return &store.Profile{Trips: []store.Trip{}}, nil
	}
	if err != nil {
		h.log.Error("loading profile failed", zap.Error(err))
		return nil, err
	}
	return profile, nil
}

// normalizeTrip upcases the country code, validates it against the country
// table and fills in name and continent when the client left them empty.
func normalizeTrip(trip *store.Trip) bool {
	trip.CountryCode = strings.ToUpper(strings.TrimSpace(trip.CountryCode))
	country, ok := countries.Lookup(trip.CountryCode)
	if !ok {
		return false
	}
	if trip.Name == "" {
		trip.Name = country.Name
	}
	if trip.Continent == "" {
		trip.Continent = country.Continent
	}
	return true
}

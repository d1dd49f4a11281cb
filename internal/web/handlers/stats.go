package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jsvoboda/memorymap/internal/countries"
	"github.com/jsvoboda/memorymap/internal/store"
)

// StatsHandler serves travel statistics.
type StatsHandler struct {
	profiles store.ProfileRepository
	photos   store.PhotoReader
	log      *zap.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(profiles store.ProfileRepository, photos store.PhotoReader, logger *zap.Logger) *StatsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsHandler{profiles: profiles, photos: photos, log: logger}
}

// StatsResponse is the travel statistics payload.
type StatsResponse struct {
	Countries    int            `json:"countries"`
	WorldPercent int            `json:"worldPercent"`
	Photos       int            `json:"photos"`
	Continents   map[string]int `json:"continents"`
}

// Get computes statistics from the profile and the photo collection. The
// world percentage uses the fixed 195-country denominator.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetProfile(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		profile = &store.Profile{}
	} else if err != nil {
		h.log.Error("loading profile failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	photoCount, err := h.photos.CountPhotos(r.Context())
	if err != nil {
		h.log.Error("counting photos failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to count photos")
		return
	}

	continents := make(map[string]int)
	for _, t := range profile.Trips {
		continent := t.Continent
		if continent == "" {
			if c, ok := countries.Lookup(t.CountryCode); ok {
				continent = c.Continent
			}
		}
		if continent != "" {
			continents[continent]++
		}
	}

	respondJSON(w, http.StatusOK, StatsResponse{
		Countries:    len(profile.Trips),
		WorldPercent: countries.WorldPercent(len(profile.Trips)),
		Photos:       photoCount,
		Continents:   continents,
	})
}

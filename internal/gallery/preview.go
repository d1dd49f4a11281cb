package gallery

import (
	"context"
	"sort"
	"sync"

	"github.com/jsvoboda/memorymap/internal/store"
)

// previewTracker maintains the per-country map-pin aggregates: one
// representative photo (the latest-created) plus a count. It is kept up to
// date incrementally on upload and recomputed per country on delete.
type previewTracker struct {
	mu          sync.RWMutex
	initialized bool
	byCountry   map[string]store.CountryPreview
}

func newPreviewTracker() *previewTracker {
	return &previewTracker{byCountry: make(map[string]store.CountryPreview)}
}

// rebuild replaces the tracker contents from a full photo listing.
func (t *previewTracker) rebuild(photos []store.Photo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byCountry = make(map[string]store.CountryPreview)
	for _, p := range photos {
		t.applyLocked(p)
	}
	t.initialized = true
}

// add folds one new photo into the aggregates.
func (t *previewTracker) add(p store.Photo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return
	}
	t.applyLocked(p)
}

func (t *previewTracker) applyLocked(p store.Photo) {
	cur, ok := t.byCountry[p.CountryCode]
	if !ok {
		t.byCountry[p.CountryCode] = store.CountryPreview{
			CountryCode: p.CountryCode,
			PhotoID:     p.ID,
			URL:         p.URL,
			Count:       1,
			LatestAt:    p.CreatedAt,
		}
		return
	}

	cur.Count++
	if p.CreatedAt.After(cur.LatestAt) {
		cur.PhotoID = p.ID
		cur.URL = p.URL
		cur.LatestAt = p.CreatedAt
	}
	t.byCountry[p.CountryCode] = cur
}

// remove recomputes one country's aggregate after a photo delete.
func (t *previewTracker) remove(ctx context.Context, photos store.PhotoReader, countryCode string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return
	}

	remaining, err := photos.ListPhotosByCountry(ctx, countryCode)
	if err != nil {
		// Next full rebuild fixes the aggregate.
		t.initialized = false
		return
	}
	if len(remaining) == 0 {
		delete(t.byCountry, countryCode)
		return
	}

	delete(t.byCountry, countryCode)
	for _, p := range remaining {
		t.applyLocked(p)
	}
}

func (t *previewTracker) snapshot() ([]store.CountryPreview, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.initialized {
		return nil, false
	}
	out := make([]store.CountryPreview, 0, len(t.byCountry))
	for _, p := range t.byCountry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CountryCode < out[j].CountryCode })
	return out, true
}

// CountryPreviews returns the map-pin aggregates for all countries with
// photos, ordered by country code.
func (s *Service) CountryPreviews(ctx context.Context) ([]store.CountryPreview, error) {
	if previews, ok := s.previews.snapshot(); ok {
		return previews, nil
	}

	photos, err := s.photos.ListPhotos(ctx)
	if err != nil {
		return nil, err
	}
	s.previews.rebuild(photos)

	previews, _ := s.previews.snapshot()
	return previews, nil
}

// Package mock provides in-memory implementations of the store repositories
// for handler and service tests.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/jsvoboda/memorymap/internal/match"
	"github.com/jsvoboda/memorymap/internal/store"
)

// ProfileRepo is an in-memory store.ProfileRepository.
type ProfileRepo struct {
	mu      sync.RWMutex
	profile *store.Profile

	// Error injection
	GetError  error
	SaveError error
}

func NewProfileRepo() *ProfileRepo {
	return &ProfileRepo{}
}

func (r *ProfileRepo) GetProfile(ctx context.Context) (*store.Profile, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.profile == nil {
		return nil, store.ErrNotFound
	}
	cp := *r.profile
	cp.Trips = append([]store.Trip(nil), r.profile.Trips...)
	return &cp, nil
}

func (r *ProfileRepo) SaveProfile(ctx context.Context, p *store.Profile) error {
	if r.SaveError != nil {
		return r.SaveError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	cp.Trips = append([]store.Trip(nil), p.Trips...)
	r.profile = &cp
	return nil
}

// PhotoRepo is an in-memory store.PhotoWriter.
type PhotoRepo struct {
	mu     sync.RWMutex
	photos map[string]*store.Photo

	// Error injection
	GetError    error
	ListError   error
	InsertError error
	UpdateError error
	DeleteError error
}

func NewPhotoRepo() *PhotoRepo {
	return &PhotoRepo{photos: make(map[string]*store.Photo)}
}

func (r *PhotoRepo) GetPhoto(ctx context.Context, id string) (*store.Photo, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.photos[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PhotoRepo) ListPhotosByCountry(ctx context.Context, countryCode string) ([]store.Photo, error) {
	if r.ListError != nil {
		return nil, r.ListError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []store.Photo
	for _, p := range r.photos {
		if p.CountryCode == countryCode {
			out = append(out, *p)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *PhotoRepo) ListPhotos(ctx context.Context) ([]store.Photo, error) {
	if r.ListError != nil {
		return nil, r.ListError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]store.Photo, 0, len(r.photos))
	for _, p := range r.photos {
		out = append(out, *p)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *PhotoRepo) CountPhotos(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.photos), nil
}

func (r *PhotoRepo) InsertPhoto(ctx context.Context, p *store.Photo) error {
	if r.InsertError != nil {
		return r.InsertError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.photos[p.ID] = &cp
	return nil
}

func (r *PhotoRepo) UpdatePhoto(ctx context.Context, p *store.Photo) error {
	if r.UpdateError != nil {
		return r.UpdateError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.photos[p.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *p
	r.photos[p.ID] = &cp
	return nil
}

func (r *PhotoRepo) DeletePhoto(ctx context.Context, id string) error {
	if r.DeleteError != nil {
		return r.DeleteError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.photos[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.photos, id)
	return nil
}

func sortNewestFirst(photos []store.Photo) {
	sort.Slice(photos, func(i, j int) bool {
		if photos[i].CreatedAt.Equal(photos[j].CreatedAt) {
			return photos[i].ID > photos[j].ID
		}
		return photos[i].CreatedAt.After(photos[j].CreatedAt)
	})
}

// FaceRepo is an in-memory store.FaceWriter. FindSimilar does a linear scan
// with euclidean distance, matching the production matcher's metric.
type FaceRepo struct {
	mu    sync.RWMutex
	faces map[string]*store.DetectedFace

	// Error injection
	GetError         error
	InsertError      error
	UpdateError      error
	DeleteError      error
	FindSimilarError error
}

func NewFaceRepo() *FaceRepo {
	return &FaceRepo{faces: make(map[string]*store.DetectedFace)}
}

func (r *FaceRepo) GetFace(ctx context.Context, id string) (*store.DetectedFace, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.faces[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *FaceRepo) GetFacesByPhoto(ctx context.Context, photoID string) ([]store.DetectedFace, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []store.DetectedFace
	for _, f := range r.faces {
		if f.PhotoID == photoID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *FaceRepo) GetAllFaces(ctx context.Context) ([]store.DetectedFace, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]store.DetectedFace, 0, len(r.faces))
	for _, f := range r.faces {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *FaceRepo) FindSimilar(ctx context.Context, descriptor []float32, limit int) ([]store.DetectedFace, []float64, error) {
	if r.FindSimilarError != nil {
		return nil, nil, r.FindSimilarError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		face store.DetectedFace
		dist float64
	}
	var candidates []scored
	for _, f := range r.faces {
		if len(f.Descriptor) == 0 {
			continue
		}
		candidates = append(candidates, scored{*f, match.EuclideanDistance(descriptor, f.Descriptor)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	faces := make([]store.DetectedFace, len(candidates))
	distances := make([]float64, len(candidates))
	for i, c := range candidates {
		faces[i] = c.face
		distances[i] = c.dist
	}
	return faces, distances, nil
}

func (r *FaceRepo) InsertFaces(ctx context.Context, faces []store.DetectedFace) error {
	if r.InsertError != nil {
		return r.InsertError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range faces {
		cp := faces[i]
		r.faces[cp.ID] = &cp
	}
	return nil
}

func (r *FaceRepo) UpdateFaceAssignment(ctx context.Context, faceID, memberID string) error {
	if r.UpdateError != nil {
		return r.UpdateError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.faces[faceID]
	if !ok {
		return store.ErrNotFound
	}
	f.AssignedMemberID = memberID
	return nil
}

func (r *FaceRepo) ClearAssignmentsByMember(ctx context.Context, photoID, memberID string) error {
	if r.UpdateError != nil {
		return r.UpdateError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.faces {
		if f.PhotoID == photoID && f.AssignedMemberID == memberID {
			f.AssignedMemberID = ""
		}
	}
	return nil
}

func (r *FaceRepo) DeleteFacesByPhoto(ctx context.Context, photoID string) ([]string, error) {
	if r.DeleteError != nil {
		return nil, r.DeleteError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted []string
	for id, f := range r.faces {
		if f.PhotoID == photoID {
			deleted = append(deleted, id)
			delete(r.faces, id)
		}
	}
	return deleted, nil
}

// MemberRepo is an in-memory store.MemberRepository.
type MemberRepo struct {
	mu      sync.RWMutex
	members map[string]*store.FamilyMember

	// Error injection
	GetError    error
	ListError   error
	InsertError error
	UpdateError error
	DeleteError error
}

func NewMemberRepo() *MemberRepo {
	return &MemberRepo{members: make(map[string]*store.FamilyMember)}
}

func (r *MemberRepo) GetMember(ctx context.Context, id string) (*store.FamilyMember, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *MemberRepo) ListMembers(ctx context.Context) ([]store.FamilyMember, error) {
	if r.ListError != nil {
		return nil, r.ListError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]store.FamilyMember, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemberRepo) InsertMember(ctx context.Context, m *store.FamilyMember) error {
	if r.InsertError != nil {
		return r.InsertError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	cp.Doc = store.SanitizeMap(m.Doc)
	r.members[m.ID] = &cp
	return nil
}

func (r *MemberRepo) UpdateMember(ctx context.Context, m *store.FamilyMember) error {
	if r.UpdateError != nil {
		return r.UpdateError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *m
	cp.Doc = store.SanitizeMap(m.Doc)
	r.members[m.ID] = &cp
	return nil
}

func (r *MemberRepo) DeleteMember(ctx context.Context, id string) error {
	if r.DeleteError != nil {
		return r.DeleteError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.members, id)
	return nil
}

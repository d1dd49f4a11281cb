package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when a document does not exist.
var ErrNotFound = errors.New("not found")

// ProfileRepository persists the singleton profile document.
type ProfileRepository interface {
	// GetProfile returns the profile document, or ErrNotFound if none has
	// been created yet.
	GetProfile(ctx context.Context) (*Profile, error)
	// SaveProfile overwrites the whole profile document.
	SaveProfile(ctx context.Context, p *Profile) error
}

// PhotoReader provides read-only access to photo documents.
type PhotoReader interface {
	// GetPhoto retrieves a photo by ID, returns ErrNotFound if missing.
	GetPhoto(ctx context.Context, id string) (*Photo, error)
	// ListPhotosByCountry returns all photos for a country, newest first.
	ListPhotosByCountry(ctx context.Context, countryCode string) ([]Photo, error)
	// ListPhotos returns all photos, newest first.
	ListPhotos(ctx context.Context) ([]Photo, error)
	// CountPhotos returns the total number of photo documents.
	CountPhotos(ctx context.Context) (int, error)
}

// PhotoWriter provides write access to photo documents.
type PhotoWriter interface {
	PhotoReader

	// InsertPhoto stores a new photo document.
	InsertPhoto(ctx context.Context, p *Photo) error
	// UpdatePhoto patches an individual photo document (caption, face tags).
	UpdatePhoto(ctx context.Context, p *Photo) error
	// DeletePhoto removes a photo document. Face records for the photo are
	// removed separately via FaceWriter.
	DeletePhoto(ctx context.Context, id string) error
}

// FaceReader provides read-only access to detected-face records.
type FaceReader interface {
	// GetFace retrieves a single detection, returns ErrNotFound if missing.
	GetFace(ctx context.Context, id string) (*DetectedFace, error)
	// GetFacesByPhoto returns all detections for a photo in creation order.
	GetFacesByPhoto(ctx context.Context, photoID string) ([]DetectedFace, error)
	// GetAllFaces returns every stored detection. Used to warm the in-memory
	// descriptor index at startup.
	GetAllFaces(ctx context.Context) ([]DetectedFace, error)
	// FindSimilar returns up to limit detections nearest to the descriptor,
	// with their distances, nearest first.
	FindSimilar(ctx context.Context, descriptor []float32, limit int) ([]DetectedFace, []float64, error)
}

// FaceWriter provides write access to detected-face records.
type FaceWriter interface {
	FaceReader

	// InsertFaces stores detections for a photo.
	InsertFaces(ctx context.Context, faces []DetectedFace) error
	// UpdateFaceAssignment sets the confirmed identity of a detection.
	// An empty memberID clears the assignment.
	UpdateFaceAssignment(ctx context.Context, faceID, memberID string) error
	// ClearAssignmentsByMember clears assignments to a member on one photo.
	ClearAssignmentsByMember(ctx context.Context, photoID, memberID string) error
	// DeleteFacesByPhoto removes all detections of a photo and returns the
	// deleted face IDs for index cleanup.
	DeleteFacesByPhoto(ctx context.Context, photoID string) ([]string, error)
}

// MemberRepository persists family members.
type MemberRepository interface {
	// GetMember retrieves a member by ID, returns ErrNotFound if missing.
	GetMember(ctx context.Context, id string) (*FamilyMember, error)
	// ListMembers returns all members ordered by creation time.
	ListMembers(ctx context.Context) ([]FamilyMember, error)
	// InsertMember stores a new member.
	InsertMember(ctx context.Context, m *FamilyMember) error
	// UpdateMember patches a member document (name, descriptor doc).
	UpdateMember(ctx context.Context, m *FamilyMember) error
	// DeleteMember removes a member. No cascading cleanup of face records.
	DeleteMember(ctx context.Context, id string) error
}

// Package store defines the persistent document model and repository
// interfaces backing the travel map: the trips profile singleton, photos with
// their face tags, per-photo face detections, and family members.
package store

import (
	"time"
)

// Trip is one visited place. Identity key is the country code, unique within
// the profile document.
type Trip struct {
	CountryCode string   `json:"countryCode"`
	Name        string   `json:"name"`
	Continent   string   `json:"continent"`
	Year        int      `json:"year,omitempty"`
	Cities      []string `json:"cities,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// Profile is the singleton configuration document: map title/subtitle and the
// full set of trips. Trip-collection mutations overwrite the whole document.
type Profile struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Trips    []Trip `json:"trips"`
}

// FaceTag is the denormalized, human-visible record of "person X appears in
// this photo". It is display data; DetectedFace.AssignedMemberID is the
// source of truth for matching. The two are written independently and can
// diverge; ReconcilePhotoTags recomputes tags from assignments.
type FaceTag struct {
	MemberID   string  `json:"memberId"`
	MemberName string  `json:"memberName"`
	Confidence float64 `json:"confidence,omitempty"` // 1 - match distance, display heuristic only
}

// Photo is one uploaded image. The blob lives in the object store under the
// photo ID; this document carries metadata only.
type Photo struct {
	ID          string    `json:"id"`
	CountryCode string    `json:"countryCode"`
	URL         string    `json:"url"`
	Filename    string    `json:"filename"`
	Caption     string    `json:"caption,omitempty"`
	FaceTags    []FaceTag `json:"faceTags"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DetectedFace is one face found during detection on a photo. The thumbnail
// is embedded (small, low quality) so per-photo metadata stays cheap to
// render. Suggested identity comes from matching at upload time and is
// advisory; AssignedMemberID is set only by explicit user confirmation.
type DetectedFace struct {
	ID                string    `json:"id"`
	PhotoID           string    `json:"photoId"`
	BBox              []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels of the stored image
	Thumbnail         []byte    `json:"thumbnail,omitempty"`
	Descriptor        []float32 `json:"-"`
	SuggestedMemberID string    `json:"suggestedMemberId,omitempty"`
	SuggestedDistance float64   `json:"suggestedDistance,omitempty"`
	AssignedMemberID  string    `json:"assignedMemberId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// FamilyMember is a known identity. Doc carries the reference descriptors in
// whatever shape history left them; DecodeDescriptors normalizes the legacy
// variants. Deleting a member does not cascade - face records referencing it
// become orphaned pointers.
type FamilyMember struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Doc       map[string]any `json:"doc,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// CountryPreview is the per-country map-pin aggregate: one representative
// photo plus a count. The latest-created photo wins as the preview.
type CountryPreview struct {
	CountryCode string    `json:"countryCode"`
	PhotoID     string    `json:"photoId"`
	URL         string    `json:"url"`
	Count       int       `json:"count"`
	LatestAt    time.Time `json:"latestAt"`
}

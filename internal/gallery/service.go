// Package gallery implements the photo pipeline: normalize, detect faces,
// suggest identities, store blobs and documents, and keep face tags in sync
// with confirmed assignments.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jsvoboda/memorymap/internal/blob"
	"github.com/jsvoboda/memorymap/internal/countries"
	"github.com/jsvoboda/memorymap/internal/faceapi"
	"github.com/jsvoboda/memorymap/internal/match"
	"github.com/jsvoboda/memorymap/internal/media"
	"github.com/jsvoboda/memorymap/internal/store"
)

// BlobStore is the object-store surface the pipeline needs.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// Detector finds faces and their descriptors in an image.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]faceapi.Detection, error)
}

// Upload is one file of a batch upload.
type Upload struct {
	Filename string
	Data     []byte
}

// Service runs the gallery pipeline over the repositories.
type Service struct {
	photos    store.PhotoWriter
	faces     store.FaceWriter
	members   store.MemberRepository
	blobs     BlobStore
	detector  Detector
	index     *match.Index
	threshold float64
	previews  *previewTracker
	log       *zap.Logger
}

// NewService wires the pipeline. A zero threshold selects the default match
// threshold.
func NewService(
	photos store.PhotoWriter,
	faces store.FaceWriter,
	members store.MemberRepository,
	blobs BlobStore,
	detector Detector,
	index *match.Index,
	threshold float64,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		photos:    photos,
		faces:     faces,
		members:   members,
		blobs:     blobs,
		detector:  detector,
		index:     index,
		threshold: threshold,
		previews:  newPreviewTracker(),
		log:       logger,
	}
}

// WarmIndex rebuilds the in-memory descriptor index from all stored
// detections. Called once at startup and by the reindex command.
func (s *Service) WarmIndex(ctx context.Context) (int, error) {
	faces, err := s.faces.GetAllFaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("load faces for index: %w", err)
	}

	refs := make([]match.FaceRef, len(faces))
	descriptors := make([][]float32, len(faces))
	for i, f := range faces {
		refs[i] = match.FaceRef{FaceID: f.ID, PhotoID: f.PhotoID, AssignedMemberID: f.AssignedMemberID}
		descriptors[i] = f.Descriptor
	}
	if err := s.index.Build(refs, descriptors); err != nil {
		return 0, fmt.Errorf("build index: %w", err)
	}
	return s.index.Len(), nil
}

// UploadPhotos runs the pipeline for each file in turn. A failing file is
// logged and skipped; the remaining files still go through. The returned
// slice holds the successfully stored photos.
func (s *Service) UploadPhotos(ctx context.Context, countryCode string, uploads []Upload) ([]store.Photo, error) {
	if !countries.ValidCode(countryCode) {
		return nil, fmt.Errorf("invalid country code %q", countryCode)
	}

	matcher, err := s.loadMatcher(ctx)
	if err != nil {
		return nil, err
	}

	stored := make([]store.Photo, 0, len(uploads))
	for _, up := range uploads {
		photo, err := s.uploadOne(ctx, countryCode, up, matcher)
		if err != nil {
			s.log.Warn("photo upload failed, skipping file",
				zap.String("filename", up.Filename), zap.Error(err))
			continue
		}
		stored = append(stored, *photo)
	}
	return stored, nil
}

func (s *Service) uploadOne(ctx context.Context, countryCode string, up Upload, matcher *match.Matcher) (*store.Photo, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	norm, err := media.Normalize(up.Data)
	if err != nil {
		// Undecodable input is stored as-is; face detection is skipped
		// implicitly because the detector will not find faces either.
		s.log.Warn("image normalization failed, storing original bytes",
			zap.String("filename", up.Filename), zap.Error(err))
	}

	faces := s.detectFaces(ctx, id, norm.Data, now, matcher)

	key := blob.PhotoKey(id)
	if err := s.blobs.Put(ctx, key, "image/jpeg", norm.Data); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	url, err := s.blobs.URL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolve blob URL: %w", err)
	}

	photo := &store.Photo{
		ID:          id,
		CountryCode: countryCode,
		URL:         url,
		Filename:    up.Filename,
		FaceTags:    []store.FaceTag{},
		CreatedAt:   now,
	}
	if err := s.photos.InsertPhoto(ctx, photo); err != nil {
		return nil, fmt.Errorf("insert photo document: %w", err)
	}
	s.previews.add(*photo)

	// Face rows are secondary to the photo itself. A failure here leaves
	// the photo without detection records, repairable via lazy detection.
	if len(faces) > 0 {
		if err := s.faces.InsertFaces(ctx, faces); err != nil {
			s.log.Error("storing face detections failed",
				zap.String("photoId", id), zap.Error(err))
		} else {
			for _, f := range faces {
				s.index.Add(match.FaceRef{FaceID: f.ID, PhotoID: f.PhotoID}, f.Descriptor)
			}
		}
	}

	return photo, nil
}

// detectFaces runs detection, thumbnail cropping and identity matching for
// one image. Detection failure means zero faces; the upload proceeds.
func (s *Service) detectFaces(
	ctx context.Context, photoID string, imageData []byte, now time.Time, matcher *match.Matcher,
) []store.DetectedFace {
	detections, err := s.detector.Detect(ctx, imageData)
	if err != nil {
		s.log.Warn("face detection failed, continuing without faces",
			zap.String("photoId", photoID), zap.Error(err))
		return nil
	}
	if len(detections) == 0 {
		return nil
	}

	img, err := media.Decode(imageData)
	if err != nil {
		s.log.Warn("decoding image for thumbnails failed",
			zap.String("photoId", photoID), zap.Error(err))
		img = nil
	}

	faces := make([]store.DetectedFace, 0, len(detections))
	for _, det := range detections {
		face := store.DetectedFace{
			ID:         uuid.NewString(),
			PhotoID:    photoID,
			BBox:       det.BBox,
			Descriptor: det.Descriptor,
			CreatedAt:  now,
		}

		if img != nil {
			thumb, err := media.CropFaceThumbnail(img, det.BBox)
			if err != nil {
				s.log.Warn("face thumbnail crop failed",
					zap.String("photoId", photoID), zap.Error(err))
			} else {
				face.Thumbnail = thumb
			}
		}

		if sug, ok := matcher.BestMatch(det.Descriptor); ok {
			face.SuggestedMemberID = sug.MemberID
			face.SuggestedDistance = sug.Distance
		}

		faces = append(faces, face)
	}
	return faces
}

// DeletePhoto removes the blob, the face rows and the photo document. The
// writes are independent; a blob failure does not roll back the document
// delete and vice versa.
func (s *Service) DeletePhoto(ctx context.Context, photoID string) error {
	photo, err := s.photos.GetPhoto(ctx, photoID)
	if err != nil {
		return err
	}

	blobErr := s.blobs.Delete(ctx, blob.PhotoKey(photoID))
	if blobErr != nil {
		s.log.Error("blob delete failed", zap.String("photoId", photoID), zap.Error(blobErr))
	}

	deleted, err := s.faces.DeleteFacesByPhoto(ctx, photoID)
	if err != nil {
		s.log.Error("face rows delete failed", zap.String("photoId", photoID), zap.Error(err))
	}
	s.index.Remove(deleted...)

	docErr := s.photos.DeletePhoto(ctx, photoID)
	if docErr == nil {
		s.previews.remove(ctx, s.photos, photo.CountryCode)
	}

	return errors.Join(blobErr, docErr)
}

// DetectPhotoFaces returns the detection records of a photo, running lazy
// detection first when the photo predates face support and has none.
func (s *Service) DetectPhotoFaces(ctx context.Context, photoID string) ([]store.DetectedFace, error) {
	if _, err := s.photos.GetPhoto(ctx, photoID); err != nil {
		return nil, err
	}

	faces, err := s.faces.GetFacesByPhoto(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if len(faces) > 0 {
		return faces, nil
	}

	data, err := s.blobs.Get(ctx, blob.PhotoKey(photoID))
	if err != nil {
		return nil, fmt.Errorf("fetch photo blob: %w", err)
	}

	matcher, err := s.loadMatcher(ctx)
	if err != nil {
		return nil, err
	}

	detected := s.detectFaces(ctx, photoID, data, time.Now().UTC(), matcher)
	if len(detected) == 0 {
		return []store.DetectedFace{}, nil
	}

	if err := s.faces.InsertFaces(ctx, detected); err != nil {
		return nil, fmt.Errorf("store face detections: %w", err)
	}
	for _, f := range detected {
		s.index.Add(match.FaceRef{FaceID: f.ID, PhotoID: f.PhotoID}, f.Descriptor)
	}
	return detected, nil
}

// SimilarFaces searches the library for detections nearest to the given
// face's descriptor. The query face itself is excluded.
func (s *Service) SimilarFaces(ctx context.Context, faceID string, limit int) ([]store.DetectedFace, []float64, error) {
	face, err := s.faces.GetFace(ctx, faceID)
	if err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	refs, distances, err := s.index.Search(face.Descriptor, limit+1)
	if err != nil {
		return nil, nil, err
	}

	faces := make([]store.DetectedFace, 0, limit)
	out := make([]float64, 0, limit)
	for i, ref := range refs {
		if ref.FaceID == faceID {
			continue
		}
		f, err := s.faces.GetFace(ctx, ref.FaceID)
		if err != nil {
			// Index can be slightly ahead of or behind the store.
			continue
		}
		faces = append(faces, *f)
		out = append(out, distances[i])
		if len(faces) == limit {
			break
		}
	}
	return faces, out, nil
}

// loadMatcher builds an identity matcher from all family members.
func (s *Service) loadMatcher(ctx context.Context) (*match.Matcher, error) {
	members, err := s.members.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	refs := make([]match.Reference, 0, len(members))
	for i := range members {
		m := &members[i]
		refs = append(refs, match.Reference{
			MemberID:    m.ID,
			MemberName:  m.Name,
			Descriptors: m.ReferenceDescriptors(),
		})
	}
	return match.NewMatcher(refs, s.threshold), nil
}

package gallery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jsvoboda/memorymap/internal/store"
)

// AssignFace confirms (or clears, with an empty memberID) the identity of a
// detection. The assignment row is the source of truth; the photo's face
// tags and the member's reference descriptors are updated as independent
// follow-up writes whose failures are logged, not surfaced.
func (s *Service) AssignFace(ctx context.Context, faceID, memberID string) error {
	face, err := s.faces.GetFace(ctx, faceID)
	if err != nil {
		return err
	}

	var member *store.FamilyMember
	if memberID != "" {
		member, err = s.members.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
	}

	if err := s.faces.UpdateFaceAssignment(ctx, faceID, memberID); err != nil {
		return err
	}
	s.index.SetAssignment(faceID, memberID)

	if member != nil && len(face.Descriptor) > 0 {
		member.AppendDescriptor(face.Descriptor)
		if err := s.members.UpdateMember(ctx, member); err != nil {
			s.log.Error("appending confirmed descriptor failed",
				zap.String("memberId", memberID), zap.Error(err))
		}
	}

	if err := s.ReconcilePhotoTags(ctx, face.PhotoID); err != nil {
		s.log.Error("updating photo face tags failed",
			zap.String("photoId", face.PhotoID), zap.Error(err))
	}
	return nil
}

// TagMember tags a member on a photo. Photos that predate face support get
// lazy detection first; the tag is then attached to the first unassigned
// face. Photos without any detectable face carry the tag on the document
// alone. When the photo has faces but all are assigned to other members,
// the tag is also document-only, and the next ReconcilePhotoTags drops it:
// on photos with detections, assignments are the only source of truth.
func (s *Service) TagMember(ctx context.Context, photoID, memberID string) error {
	member, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return err
	}

	faces, err := s.DetectPhotoFaces(ctx, photoID)
	if err != nil {
		return err
	}

	for i := range faces {
		f := &faces[i]
		if f.AssignedMemberID != "" {
			if f.AssignedMemberID == memberID {
				// Already tagged through this face.
				return nil
			}
			continue
		}
		return s.AssignFace(ctx, f.ID, memberID)
	}

	// No free face to attach to: tag the document directly.
	return s.addPhotoTag(ctx, photoID, member)
}

// RemoveMemberTag removes a member's tag from a photo: assignments on the
// photo's faces are cleared and the face tag is dropped from the document.
// The two writes are independent.
func (s *Service) RemoveMemberTag(ctx context.Context, photoID, memberID string) error {
	photo, err := s.photos.GetPhoto(ctx, photoID)
	if err != nil {
		return err
	}

	if err := s.faces.ClearAssignmentsByMember(ctx, photoID, memberID); err != nil {
		return err
	}
	if faces, err := s.faces.GetFacesByPhoto(ctx, photoID); err == nil {
		for _, f := range faces {
			s.index.SetAssignment(f.ID, f.AssignedMemberID)
		}
	}

	tags := photo.FaceTags[:0]
	for _, t := range photo.FaceTags {
		if t.MemberID != memberID {
			tags = append(tags, t)
		}
	}
	photo.FaceTags = tags
	if err := s.photos.UpdatePhoto(ctx, photo); err != nil {
		return fmt.Errorf("update photo tags: %w", err)
	}
	return nil
}

// ReconcilePhotoTags recomputes a photo's face tags from its confirmed
// assignments. Tags without a backing assignment survive only on photos
// with zero detections, and only while their member still exists. On
// photos that do have faces, every document-only tag is erased, including
// one TagMember added because all faces were taken. Orphaned member
// pointers are dropped.
func (s *Service) ReconcilePhotoTags(ctx context.Context, photoID string) error {
	photo, err := s.photos.GetPhoto(ctx, photoID)
	if err != nil {
		return err
	}
	faces, err := s.faces.GetFacesByPhoto(ctx, photoID)
	if err != nil {
		return err
	}

	tags := make([]store.FaceTag, 0, len(faces))
	seen := make(map[string]bool)
	for _, f := range faces {
		if f.AssignedMemberID == "" || seen[f.AssignedMemberID] {
			continue
		}
		member, err := s.members.GetMember(ctx, f.AssignedMemberID)
		if errors.Is(err, store.ErrNotFound) {
			// Orphaned pointer left by a member delete.
			continue
		}
		if err != nil {
			return err
		}
		seen[f.AssignedMemberID] = true

		tag := store.FaceTag{MemberID: member.ID, MemberName: member.Name}
		if f.SuggestedMemberID == f.AssignedMemberID && f.SuggestedDistance > 0 {
			tag.Confidence = 1 - f.SuggestedDistance
		}
		tags = append(tags, tag)
	}

	// Document-only tags (photos without a usable face) have no assignment
	// to recompute from; keep them if the member still exists.
	if len(faces) == 0 {
		for _, t := range photo.FaceTags {
			if _, err := s.members.GetMember(ctx, t.MemberID); err == nil {
				tags = append(tags, t)
			}
		}
	}

	photo.FaceTags = tags
	if err := s.photos.UpdatePhoto(ctx, photo); err != nil {
		return fmt.Errorf("update photo tags: %w", err)
	}
	return nil
}

// ReconcileAllPhotoTags runs the repair pass over every photo and returns
// the number of photos processed.
func (s *Service) ReconcileAllPhotoTags(ctx context.Context) (int, error) {
	photos, err := s.photos.ListPhotos(ctx)
	if err != nil {
		return 0, err
	}
	for i := range photos {
		if err := s.ReconcilePhotoTags(ctx, photos[i].ID); err != nil {
			return i, fmt.Errorf("reconcile photo %s: %w", photos[i].ID, err)
		}
	}
	return len(photos), nil
}

// addPhotoTag appends a document-only face tag, suppressing duplicates.
func (s *Service) addPhotoTag(ctx context.Context, photoID string, member *store.FamilyMember) error {
	photo, err := s.photos.GetPhoto(ctx, photoID)
	if err != nil {
		return err
	}
	for _, t := range photo.FaceTags {
		if t.MemberID == member.ID {
			return nil
		}
	}
	photo.FaceTags = append(photo.FaceTags, store.FaceTag{MemberID: member.ID, MemberName: member.Name})
	if err := s.photos.UpdatePhoto(ctx, photo); err != nil {
		return fmt.Errorf("update photo tags: %w", err)
	}
	return nil
}

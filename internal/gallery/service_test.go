package gallery

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jsvoboda/memorymap/internal/blob"
	"github.com/jsvoboda/memorymap/internal/faceapi"
	"github.com/jsvoboda/memorymap/internal/match"
	"github.com/jsvoboda/memorymap/internal/store"
	"github.com/jsvoboda/memorymap/internal/store/mock"
)

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte

	PutError    error
	GetError    error
	DeleteError error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Put(ctx context.Context, key, contentType string, data []byte) error {
	if b.PutError != nil {
		return b.PutError
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func (b *fakeBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	if b.GetError != nil {
		return nil, b.GetError
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (b *fakeBlobs) Delete(ctx context.Context, key string) error {
	if b.DeleteError != nil {
		return b.DeleteError
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *fakeBlobs) URL(ctx context.Context, key string) (string, error) {
	return "https://media.test/" + key, nil
}

func (b *fakeBlobs) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

type fakeDetector struct {
	detections []faceapi.Detection
	err        error
	calls      int
}

func (d *fakeDetector) Detect(ctx context.Context, imageData []byte) ([]faceapi.Detection, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.detections, nil
}

type testEnv struct {
	svc      *Service
	photos   *mock.PhotoRepo
	faces    *mock.FaceRepo
	members  *mock.MemberRepo
	blobs    *fakeBlobs
	detector *fakeDetector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		photos:   mock.NewPhotoRepo(),
		faces:    mock.NewFaceRepo(),
		members:  mock.NewMemberRepo(),
		blobs:    newFakeBlobs(),
		detector: &fakeDetector{},
	}
	env.svc = NewService(env.photos, env.faces, env.members, env.blobs, env.detector, match.NewIndex(), 0, nil)
	return env
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for x := 0; x < 320; x += 8 {
		for y := 0; y < 240; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func testDescriptor(seed float32) []float32 {
	d := make([]float32, 8)
	for i := range d {
		d[i] = seed
	}
	return d
}

func addMember(t *testing.T, env *testEnv, name string, descriptor []float32) *store.FamilyMember {
	t.Helper()
	m := &store.FamilyMember{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if descriptor != nil {
		m.AppendDescriptor(descriptor)
	}
	if err := env.members.InsertMember(context.Background(), m); err != nil {
		t.Fatalf("insert member: %v", err)
	}
	return m
}

func TestUploadPhotos(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	anna := addMember(t, env, "Anna", testDescriptor(1))
	env.detector.detections = []faceapi.Detection{
		{BBox: []float64{20, 20, 120, 140}, Descriptor: testDescriptor(1.01), Score: 0.99},
	}

	photos, err := env.svc.UploadPhotos(ctx, "CZ", []Upload{
		{Filename: "a.jpg", Data: testJPEG(t)},
		{Filename: "b.jpg", Data: testJPEG(t)},
	})
	if err != nil {
		t.Fatalf("UploadPhotos failed: %v", err)
	}
	if len(photos) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(photos))
	}

	for _, p := range photos {
		if !env.blobs.has(blob.PhotoKey(p.ID)) {
			t.Errorf("blob missing for photo %s", p.ID)
		}
		if p.URL == "" || p.CountryCode != "CZ" {
			t.Errorf("unexpected photo: %+v", p)
		}
		if len(p.FaceTags) != 0 {
			t.Errorf("suggestions must not become tags, got %v", p.FaceTags)
		}

		faces, err := env.faces.GetFacesByPhoto(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetFacesByPhoto failed: %v", err)
		}
		if len(faces) != 1 {
			t.Fatalf("expected 1 face, got %d", len(faces))
		}
		if faces[0].SuggestedMemberID != anna.ID {
			t.Errorf("expected suggestion for Anna, got %q", faces[0].SuggestedMemberID)
		}
		if faces[0].AssignedMemberID != "" {
			t.Error("suggestion must not be auto-confirmed")
		}
		if len(faces[0].Thumbnail) == 0 {
			t.Error("expected face thumbnail")
		}
	}
}

func TestUploadPhotosInvalidCountry(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.UploadPhotos(context.Background(), "CZE", nil); err == nil {
		t.Error("expected error for invalid country code")
	}
}

func TestUploadPhotosPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	img := testJPEG(t)
	uploads := []Upload{{Filename: "ok.jpg", Data: img}, {Filename: "bad.jpg", Data: img}}

	// First file succeeds, then the blob store starts failing.
	photos, err := env.svc.UploadPhotos(ctx, "JP", uploads[:1])
	if err != nil || len(photos) != 1 {
		t.Fatalf("first upload failed: %v (%d photos)", err, len(photos))
	}

	env.blobs.PutError = errors.New("bucket unavailable")
	photos, err = env.svc.UploadPhotos(ctx, "JP", uploads[1:])
	if err != nil {
		t.Fatalf("UploadPhotos returned hard error for per-file failure: %v", err)
	}
	if len(photos) != 0 {
		t.Errorf("expected failed file to be skipped, got %d photos", len(photos))
	}

	count, _ := env.photos.CountPhotos(ctx)
	if count != 1 {
		t.Errorf("expected no partial record for failed file, have %d photos", count)
	}
}

func TestUploadPhotosDetectionFailure(t *testing.T) {
	env := newTestEnv(t)
	env.detector.err = errors.New("face service down")

	photos, err := env.svc.UploadPhotos(context.Background(), "IT", []Upload{
		{Filename: "a.jpg", Data: testJPEG(t)},
	})
	if err != nil {
		t.Fatalf("UploadPhotos failed: %v", err)
	}
	if len(photos) != 1 {
		t.Fatalf("upload must proceed without detection, got %d photos", len(photos))
	}

	faces, _ := env.faces.GetFacesByPhoto(context.Background(), photos[0].ID)
	if len(faces) != 0 {
		t.Errorf("expected zero faces, got %d", len(faces))
	}
}

func TestUploadPhotosUndecodable(t *testing.T) {
	env := newTestEnv(t)

	photos, err := env.svc.UploadPhotos(context.Background(), "FR", []Upload{
		{Filename: "raw.bin", Data: []byte("not an image at all")},
	})
	if err != nil {
		t.Fatalf("UploadPhotos failed: %v", err)
	}
	if len(photos) != 1 {
		t.Fatalf("expected original bytes stored, got %d photos", len(photos))
	}

	data, err := env.blobs.Get(context.Background(), blob.PhotoKey(photos[0].ID))
	if err != nil {
		t.Fatalf("blob missing: %v", err)
	}
	if !bytes.Equal(data, []byte("not an image at all")) {
		t.Error("expected original bytes preserved for undecodable input")
	}
}

func TestAssignFaceUpdatesAllThreeRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	anna := addMember(t, env, "Anna", nil)
	env.detector.detections = []faceapi.Detection{
		{BBox: []float64{10, 10, 60, 70}, Descriptor: testDescriptor(2), Score: 0.95},
	}

	photos, err := env.svc.UploadPhotos(ctx, "CZ", []Upload{{Filename: "a.jpg", Data: testJPEG(t)}})
	if err != nil || len(photos) != 1 {
		t.Fatalf("upload failed: %v", err)
	}
	faces, _ := env.faces.GetFacesByPhoto(ctx, photos[0].ID)

	if err := env.svc.AssignFace(ctx, faces[0].ID, anna.ID); err != nil {
		t.Fatalf("AssignFace failed: %v", err)
	}

	face, _ := env.faces.GetFace(ctx, faces[0].ID)
	if face.AssignedMemberID != anna.ID {
		t.Errorf("assignment not persisted: %q", face.AssignedMemberID)
	}

	member, _ := env.members.GetMember(ctx, anna.ID)
	if len(member.ReferenceDescriptors()) != 1 {
		t.Error("confirmed descriptor not appended to member")
	}

	photo, _ := env.photos.GetPhoto(ctx, photos[0].ID)
	if len(photo.FaceTags) != 1 || photo.FaceTags[0].MemberName != "Anna" {
		t.Errorf("face tag not written: %v", photo.FaceTags)
	}
}

func TestAssignFaceClear(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	anna := addMember(t, env, "Anna", nil)
	env.detector.detections = []faceapi.Detection{
		{BBox: []float64{10, 10, 60, 70}, Descriptor: testDescriptor(2)},
	}
	photos, _ := env.svc.UploadPhotos(ctx, "CZ", []Upload{{Filename: "a.jpg", Data: testJPEG(t)}})
	faces, _ := env.faces.GetFacesByPhoto(ctx, photos[0].ID)

	if err := env.svc.AssignFace(ctx, faces[0].ID, anna.ID); err != nil {
		t.Fatalf("AssignFace failed: %v", err)
	}
	if err := env.svc.AssignFace(ctx, faces[0].ID, ""); err != nil {
		t.Fatalf("clearing assignment failed: %v", err)
	}

	face, _ := env.faces.GetFace(ctx, faces[0].ID)
	if face.AssignedMemberID != "" {
		t.Errorf("expected cleared assignment, got %q", face.AssignedMemberID)
	}
	photo, _ := env.photos.GetPhoto(ctx, photos[0].ID)
	if len(photo.FaceTags) != 0 {
		t.Errorf("expected tags recomputed to empty, got %v", photo.FaceTags)
	}
}

func TestTagMemberLazyDetection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	anna := addMember(t, env, "Anna", nil)

	// A legacy photo: document and blob exist, no detection records.
	photoID := uuid.NewString()
	photo := &store.Photo{
		ID: photoID, CountryCode: "CZ", Filename: "old.jpg",
		URL: "https://media.test/photos/" + photoID + ".jpg", CreatedAt: time.Now().UTC(),
	}
	if err := env.photos.InsertPhoto(ctx, photo); err != nil {
		t.Fatal(err)
	}
	if err := env.blobs.Put(ctx, blob.PhotoKey(photoID), "image/jpeg", testJPEG(t)); err != nil {
		t.Fatal(err)
	}
	env.detector.detections = []faceapi.Detection{
		{BBox: []float64{10, 10, 60, 70}, Descriptor: testDescriptor(3)},
	}

	if err := env.svc.TagMember(ctx, photoID, anna.ID); err != nil {
		t.Fatalf("TagMember failed: %v", err)
	}
	if env.detector.calls != 1 {
		t.Errorf("expected one lazy detection call, got %d", env.detector.calls)
	}

	faces, _ := env.faces.GetFacesByPhoto(ctx, photoID)
	if len(faces) != 1 || faces[0].AssignedMemberID != anna.ID {
		t.Errorf("expected detected face assigned to Anna, got %+v", faces)
	}

	got, _ := env.photos.GetPhoto(ctx, photoID)
	if len(got.FaceTags) != 1 || got.FaceTags[0].MemberID != anna.ID {
		t.Errorf("expected face tag for Anna, got %v", got.FaceTags)
	}

	// Second tag of the same member is a no-op.
	if err := env.svc.TagMember(ctx, photoID, anna.ID); err != nil {
		t.Fatalf("repeat TagMember failed: %v", err)
	}
	if env.detector.calls != 1 {
		t.Errorf("detection must not rerun once records exist, got %d calls", env.detector.calls)
	}
}

func TestTagMemberWithoutDetectableFaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	anna := addMember(t, env, "Anna", nil)
	photoID := uuid.NewString()
	if err := env.photos.InsertPhoto(ctx, &store.Photo{
		ID: photoID, CountryCode: "CZ", Filename: "landscape.jpg", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := env.blobs.Put(ctx, blob.PhotoKey(photoID), "image/jpeg", testJPEG(t)); err != nil {
		t.Fatal(err)
	}

	if err := env.svc.TagMember(ctx, photoID, anna.ID); err != nil {
		t.Fatalf("TagMember failed: %v", err)
	}

	photo, _ := env.photos.GetPhoto(ctx, photoID)
	if len(photo.FaceTags) != 1 || photo.FaceTags[0].MemberID != anna.ID {
		t.Errorf("expected document-only tag, got %v", photo.FaceTags)
	}
}

func TestRemoveMemberTag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	anna := addMember(t, env, "Anna", nil)
	env.detector.detections = []faceapi.Detection{
		{BBox: []float64{10, 10, 60, 70}, Descriptor: testDescriptor(4)},
	}
	photos, _ := env.svc.UploadPhotos(ctx, "CZ", []Upload{{Filename: "a.jpg", Data: testJPEG(t)}})
	faces, _ := env.faces.GetFacesByPhoto(ctx, photos[0].ID)
	if err := env.svc.AssignFace(ctx, faces[0].ID, anna.ID); err != nil {
		t.Fatal(err)
	}

	if err := env.svc.RemoveMemberTag(ctx, photos[0].ID, anna.ID); err != nil {
		t.Fatalf("RemoveMemberTag failed: %v", err)
	}

	face, _ := env.faces.GetFace(ctx, faces[0].ID)
	if face.AssignedMemberID != "" {
		t.Errorf("assignment not cleared: %q", face.AssignedMemberID)
	}
	photo, _ := env.photos.GetPhoto(ctx, photos[0].ID)
	if len(photo.FaceTags) != 0 {
		t.Errorf("face tag not removed: %v", photo.FaceTags)
	}
}

func TestReconcilePhotoTagsRepairsDivergence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	anna := addMember(t, env, "Anna", nil)
	ghostID := uuid.NewString()

	photoID := uuid.NewString()
	if err := env.photos.InsertPhoto(ctx, &store.Photo{
		ID: photoID, CountryCode: "CZ", CreatedAt: time.Now().UTC(),
		// Stale tag pointing at a member that no longer exists.
		FaceTags: []store.FaceTag{{MemberID: ghostID, MemberName: "Ghost"}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := env.faces.InsertFaces(ctx, []store.DetectedFace{{
		ID: uuid.NewString(), PhotoID: photoID,
		BBox: []float64{1, 1, 2, 2}, Descriptor: testDescriptor(5),
		AssignedMemberID: anna.ID, CreatedAt: time.Now().UTC(),
	}}); err != nil {
		t.Fatal(err)
	}

	if err := env.svc.ReconcilePhotoTags(ctx, photoID); err != nil {
		t.Fatalf("ReconcilePhotoTags failed: %v", err)
	}

	photo, _ := env.photos.GetPhoto(ctx, photoID)
	if len(photo.FaceTags) != 1 || photo.FaceTags[0].MemberID != anna.ID {
		t.Errorf("expected tags recomputed from assignments, got %v", photo.FaceTags)
	}
}

func TestReconcileDropsDocOnlyTagWhenPhotoHasFaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	anna := addMember(t, env, "Anna", nil)
	petr := addMember(t, env, "Petr", nil)

	env.detector.detections = []faceapi.Detection{
		{BBox: []float64{10, 10, 60, 70}, Descriptor: testDescriptor(3)},
	}
	photos, err := env.svc.UploadPhotos(ctx, "CZ", []Upload{{Filename: "a.jpg", Data: testJPEG(t)}})
	if err != nil {
		t.Fatal(err)
	}
	photoID := photos[0].ID
	faces, _ := env.faces.GetFacesByPhoto(ctx, photoID)
	if err := env.svc.AssignFace(ctx, faces[0].ID, anna.ID); err != nil {
		t.Fatal(err)
	}

	// The only face is taken, so Petr's tag lands on the document alone.
	if err := env.svc.TagMember(ctx, photoID, petr.ID); err != nil {
		t.Fatalf("TagMember failed: %v", err)
	}
	photo, _ := env.photos.GetPhoto(ctx, photoID)
	if len(photo.FaceTags) != 2 {
		t.Fatalf("expected document-only tag alongside the assignment, got %v", photo.FaceTags)
	}

	if err := env.svc.ReconcilePhotoTags(ctx, photoID); err != nil {
		t.Fatalf("ReconcilePhotoTags failed: %v", err)
	}

	photo, _ = env.photos.GetPhoto(ctx, photoID)
	if len(photo.FaceTags) != 1 || photo.FaceTags[0].MemberID != anna.ID {
		t.Errorf("expected only the assignment-backed tag to survive, got %v", photo.FaceTags)
	}
}

func TestDeletePhoto(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.detector.detections = []faceapi.Detection{
		{BBox: []float64{10, 10, 60, 70}, Descriptor: testDescriptor(6)},
	}
	photos, _ := env.svc.UploadPhotos(ctx, "CZ", []Upload{{Filename: "a.jpg", Data: testJPEG(t)}})

	if err := env.svc.DeletePhoto(ctx, photos[0].ID); err != nil {
		t.Fatalf("DeletePhoto failed: %v", err)
	}

	if env.blobs.has(blob.PhotoKey(photos[0].ID)) {
		t.Error("blob not deleted")
	}
	if _, err := env.photos.GetPhoto(ctx, photos[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("photo document not deleted: %v", err)
	}
	if faces, _ := env.faces.GetFacesByPhoto(ctx, photos[0].ID); len(faces) != 0 {
		t.Errorf("face rows not deleted: %d", len(faces))
	}

	if err := env.svc.DeletePhoto(ctx, photos[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing photo, got %v", err)
	}
}

func TestDeletePhotoBlobFailureStillSurfaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	photos, _ := env.svc.UploadPhotos(ctx, "CZ", []Upload{{Filename: "a.jpg", Data: testJPEG(t)}})

	env.blobs.DeleteError = errors.New("bucket unavailable")
	if err := env.svc.DeletePhoto(ctx, photos[0].ID); err == nil {
		t.Fatal("expected blob failure to surface")
	}

	// The document delete is not rolled back.
	if _, err := env.photos.GetPhoto(ctx, photos[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected document deleted despite blob failure, got %v", err)
	}
}

func TestCountryPreviews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.UploadPhotos(ctx, "CZ", []Upload{
		{Filename: "a.jpg", Data: testJPEG(t)},
		{Filename: "b.jpg", Data: testJPEG(t)},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.UploadPhotos(ctx, "JP", []Upload{{Filename: "c.jpg", Data: testJPEG(t)}}); err != nil {
		t.Fatal(err)
	}

	previews, err := env.svc.CountryPreviews(ctx)
	if err != nil {
		t.Fatalf("CountryPreviews failed: %v", err)
	}
	if len(previews) != 2 {
		t.Fatalf("expected 2 previews, got %d", len(previews))
	}
	if previews[0].CountryCode != "CZ" || previews[0].Count != 2 {
		t.Errorf("unexpected CZ preview: %+v", previews[0])
	}
	if previews[1].CountryCode != "JP" || previews[1].Count != 1 {
		t.Errorf("unexpected JP preview: %+v", previews[1])
	}

	// Incremental update on a later upload.
	more, err := env.svc.UploadPhotos(ctx, "JP", []Upload{{Filename: "d.jpg", Data: testJPEG(t)}})
	if err != nil {
		t.Fatal(err)
	}
	previews, _ = env.svc.CountryPreviews(ctx)
	if previews[1].Count != 2 {
		t.Errorf("expected JP count 2 after upload, got %d", previews[1].Count)
	}
	if previews[1].PhotoID != more[0].ID {
		t.Errorf("expected latest photo as preview, got %s", previews[1].PhotoID)
	}

	// Deleting the preview photo falls back to the remaining one.
	if err := env.svc.DeletePhoto(ctx, more[0].ID); err != nil {
		t.Fatal(err)
	}
	previews, _ = env.svc.CountryPreviews(ctx)
	if len(previews) != 2 || previews[1].Count != 1 {
		t.Errorf("unexpected previews after delete: %+v", previews)
	}
}

func TestSimilarFaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	now := time.Now().UTC()
	near := store.DetectedFace{
		ID: uuid.NewString(), PhotoID: uuid.NewString(),
		BBox: []float64{0, 0, 1, 1}, Descriptor: testDescriptor(1.05), CreatedAt: now,
	}
	far := store.DetectedFace{
		ID: uuid.NewString(), PhotoID: uuid.NewString(),
		BBox: []float64{0, 0, 1, 1}, Descriptor: testDescriptor(9), CreatedAt: now,
	}
	query := store.DetectedFace{
		ID: uuid.NewString(), PhotoID: uuid.NewString(),
		BBox: []float64{0, 0, 1, 1}, Descriptor: testDescriptor(1), CreatedAt: now,
	}
	if err := env.faces.InsertFaces(ctx, []store.DetectedFace{near, far, query}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.WarmIndex(ctx); err != nil {
		t.Fatalf("WarmIndex failed: %v", err)
	}

	faces, distances, err := env.svc.SimilarFaces(ctx, query.ID, 1)
	if err != nil {
		t.Fatalf("SimilarFaces failed: %v", err)
	}
	if len(faces) != 1 || faces[0].ID != near.ID {
		t.Fatalf("expected nearest face %s, got %+v", near.ID, faces)
	}
	if distances[0] >= 1 {
		t.Errorf("unexpected distance %f", distances[0])
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/jsvoboda/memorymap/internal/config"
	"github.com/jsvoboda/memorymap/internal/faceapi"
	"github.com/jsvoboda/memorymap/internal/gallery"
	"github.com/jsvoboda/memorymap/internal/match"
	"github.com/jsvoboda/memorymap/internal/store/mock"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			Password: "test-password",
		},
	}
}

// testRepos bundles the mock repositories behind a gallery service.
type testRepos struct {
	profiles *mock.ProfileRepo
	photos   *mock.PhotoRepo
	faces    *mock.FaceRepo
	members  *mock.MemberRepo
	blobs    *memBlobs
	detector *stubDetector
	svc      *gallery.Service
}

func newTestRepos(t *testing.T) *testRepos {
	t.Helper()
	r := &testRepos{
		profiles: mock.NewProfileRepo(),
		photos:   mock.NewPhotoRepo(),
		faces:    mock.NewFaceRepo(),
		members:  mock.NewMemberRepo(),
		blobs:    &memBlobs{objects: make(map[string][]byte)},
		detector: &stubDetector{},
	}
	r.svc = gallery.NewService(r.photos, r.faces, r.members, r.blobs, r.detector, match.NewIndex(), 0, nil)
	return r
}

// memBlobs is an in-memory gallery.BlobStore.
type memBlobs struct {
	objects map[string][]byte
}

func (b *memBlobs) Put(ctx context.Context, key, contentType string, data []byte) error {
	b.objects[key] = data
	return nil
}

func (b *memBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", key)
	}
	return data, nil
}

func (b *memBlobs) Delete(ctx context.Context, key string) error {
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) URL(ctx context.Context, key string) (string, error) {
	return "https://media.test/" + key, nil
}

// stubDetector is a gallery.Detector returning canned detections.
type stubDetector struct {
	detections []faceapi.Detection
}

func (d *stubDetector) Detect(ctx context.Context, imageData []byte) ([]faceapi.Detection, error) {
	return d.detections, nil
}

// testJPEG encodes a small valid JPEG for upload tests.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test JPEG: %v", err)
	}
	return buf.Bytes()
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse unmarshals the recorded body into target
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

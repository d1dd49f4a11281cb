package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Client talks to the external face detection service. Detection runs a
// neural model on the remote side, so the timeout is generous.
type Client struct {
	baseURL    string
	dim        int
	httpClient *http.Client

	mu    sync.Mutex
	ready bool
}

// Detection is a single face found in an image.
type Detection struct {
	// Bounding box [x1, y1, x2, y2] in pixel coordinates.
	BBox []float64 `json:"box"`

	// Descriptor is the face embedding used for identity matching.
	Descriptor []float32 `json:"descriptor"`

	// Score is the detector's own confidence for this face.
	Score float64 `json:"score"`
}

type detectResponse struct {
	Success bool        `json:"success"`
	Faces   []Detection `json:"faces"`
	Error   string      `json:"error,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// NewClient creates a client for the face service at baseURL. Descriptors
// in detect responses must have dim dimensions; zero disables the check.
func NewClient(baseURL string, dim int) *Client {
	return &Client{
		baseURL: baseURL,
		dim:     dim,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// EnsureReady asks the service to load its detection model. The first
// successful call flips the client into the ready state; later calls are
// no-ops. A failed load is retried on the next call.
func (c *Client) EnsureReady(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/load", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("load face models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("load face models (status %d): %s", resp.StatusCode, string(body))
	}

	c.ready = true
	return nil
}

// Detect finds faces in the given image. The model is loaded lazily on the
// first call.
func (c *Client) Detect(ctx context.Context, imageData []byte) ([]Detection, error) {
	if err := c.EnsureReady(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call face service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("face service error (status %d): %s", resp.StatusCode, string(body))
	}

	var result detectResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("face detection failed: %s", result.Error)
	}

	if c.dim > 0 {
		for i, f := range result.Faces {
			if len(f.Descriptor) != c.dim {
				// A mismatched descriptor would fail much later, at the
				// vector column. Reject it here with a readable error.
				return nil, fmt.Errorf("face %d: descriptor has %d dimensions, expected %d",
					i, len(f.Descriptor), c.dim)
			}
		}
	}

	return result.Faces, nil
}

// Health reports whether the face service is up and which model it runs.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call face service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("face service health check failed with status %d", resp.StatusCode)
	}

	var result healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return result.Model, nil
}

// IsAvailable reports whether the face service responds to health checks.
func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.Health(ctx)
	return err == nil
}

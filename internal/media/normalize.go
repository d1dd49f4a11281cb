// Package media converts uploaded images into the canonical encoding the
// rest of the pipeline and browsers can reliably decode: JPEG, capped at
// MaxDimension on the longer side.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxDimension caps either side of a stored image. Larger uploads are
	// downscaled preserving aspect ratio to bound storage and processing.
	MaxDimension = 2200

	// jpegQuality is the re-encode quality for normalized images.
	jpegQuality = 92
)

// ErrUndecodable is returned (wrapped) when the input cannot be decoded.
// Callers fall back to the original bytes rather than failing the upload.
var ErrUndecodable = errors.New("image cannot be decoded")

// Image is a normalized image: canonical JPEG bytes plus pixel dimensions.
type Image struct {
	Data   []byte
	Width  int
	Height int
}

// Normalize converts arbitrary uploaded image bytes to canonical form.
// Input already in canonical form (JPEG within the dimension cap) passes
// through byte-identical. On decode failure the original bytes are returned
// together with an ErrUndecodable error so the caller can log and upload
// the original unmodified.
func Normalize(data []byte) (*Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return &Image{Data: data}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Already canonical: keep the exact original bytes.
	if format == "jpeg" && width <= MaxDimension && height <= MaxDimension {
		return &Image{Data: data, Width: width, Height: height}, nil
	}

	if width > MaxDimension || height > MaxDimension {
		img = scaleDown(img, MaxDimension)
		b := img.Bounds()
		width, height = b.Dx(), b.Dy()
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return &Image{Data: data}, fmt.Errorf("encode normalized image: %w", err)
	}
	return &Image{Data: buf.Bytes(), Width: width, Height: height}, nil
}

// Decode decodes normalized (or original) bytes for further processing.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return img, nil
}

// scaleDown resizes an image so neither dimension exceeds maxSize,
// preserving aspect ratio.
func scaleDown(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

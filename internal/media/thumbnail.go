package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
)

const (
	// thumbPadding expands a face bounding box by this fraction of the
	// box's own size on every side before cropping.
	thumbPadding = 0.3

	// thumbMaxSize caps the longer side of a face thumbnail.
	thumbMaxSize = 96

	// thumbQuality keeps embedded thumbnails small.
	thumbQuality = 60
)

// CropFaceThumbnail cuts a small, low-quality JPEG thumbnail around a face
// bounding box ([x1, y1, x2, y2] in pixels). The box is padded by a fixed
// fraction of its own size and clamped to the image bounds.
func CropFaceThumbnail(img image.Image, bbox []float64) ([]byte, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("bounding box must have 4 coordinates, got %d", len(bbox))
	}

	rect := padAndClamp(bbox, img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("bounding box %v outside image bounds %v", bbox, img.Bounds())
	}

	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(crop, crop.Bounds(), img, rect.Min, draw.Src)

	var thumb image.Image = crop
	if rect.Dx() > thumbMaxSize || rect.Dy() > thumbMaxSize {
		thumb = scaleDown(crop, thumbMaxSize)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// padAndClamp expands the box by thumbPadding of its own size per side and
// clamps the result to the image bounds.
func padAndClamp(bbox []float64, bounds image.Rectangle) image.Rectangle {
	boxW := bbox[2] - bbox[0]
	boxH := bbox[3] - bbox[1]
	padX := boxW * thumbPadding
	padY := boxH * thumbPadding

	x1 := int(math.Floor(bbox[0] - padX))
	y1 := int(math.Floor(bbox[1] - padY))
	x2 := int(math.Ceil(bbox[2] + padX))
	y2 := int(math.Ceil(bbox[3] + padY))

	return image.Rect(x1, y1, x2, y2).Intersect(bounds)
}

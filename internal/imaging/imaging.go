// Package imaging normalizes label photos before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// Label photo limits.
const (
	MaxUploadBytes = 8 << 20
	MaxDimension   = 1600
	MaxPixels      = 40_000_000
	JPEGQuality    = 90
	OutputMIME     = "image/jpeg"
)

var (
	// ErrUnsupported is returned for data that is not a JPEG or PNG image.
	ErrUnsupported = errors.New("unsupported image format")
	// ErrTooLarge is returned for uploads or images over the limits.
	ErrTooLarge = errors.New("image too large")
)

var allowed = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Label is a processed label photo.
type Label struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// ProcessLabel reads a JPEG or PNG photo of an extract label, shrinks it so
// the longer side is at most MaxDimension and re-encodes it as JPEG.
// The format is sniffed from the bytes; client headers are ignored.
func ProcessLabel(r io.Reader) (*Label, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading label photo: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, MaxUploadBytes)
	}

	if detected := http.DetectContentType(data); !allowed[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding label photo: %w", err)
	}
	img = fit(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding label photo: %w", err)
	}

	b := img.Bounds()
	return &Label{Data: buf.Bytes(), MIME: OutputMIME, Width: b.Dx(), Height: b.Dy()}, nil
}

// fit scales img down, keeping its aspect ratio, so that neither side
// exceeds maxDim. Smaller images are returned unchanged.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(max(w, h))
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

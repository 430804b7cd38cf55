package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(w, h, color.RGBA{200, 30, 30, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func encodePNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, solid(w, h, color.RGBA{30, 30, 200, 255}))
	return buf.Bytes()
}

func TestProcessLabel(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		wantW, wantH int
	}{
		{"small jpeg kept", encodeJPEG(120, 80), 120, 80},
		{"png becomes jpeg", encodePNG(100, 100), 100, 100},
		{"wide photo shrunk", encodeJPEG(3200, 1600), 1600, 800},
		{"tall photo shrunk", encodePNG(800, 2400), 533, 1600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, err := ProcessLabel(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("ProcessLabel: %v", err)
			}
			if label.MIME != OutputMIME {
				t.Errorf("expected %s, got %s", OutputMIME, label.MIME)
			}
			if label.Width != tt.wantW || label.Height != tt.wantH {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, label.Width, label.Height)
			}

			cfg, format, err := image.DecodeConfig(bytes.NewReader(label.Data))
			if err != nil {
				t.Fatalf("decoding output: %v", err)
			}
			if format != "jpeg" || cfg.Width != tt.wantW {
				t.Errorf("output is %s %dpx wide", format, cfg.Width)
			}
		})
	}
}

func TestProcessLabelRejectsNonImage(t *testing.T) {
	_, err := ProcessLabel(bytes.NewReader([]byte("%PDF-1.7 not a photo")))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestProcessLabelRejectsOversizedUpload(t *testing.T) {
	data := make([]byte, MaxUploadBytes+10)
	copy(data, encodeJPEG(10, 10))

	_, err := ProcessLabel(bytes.NewReader(data))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

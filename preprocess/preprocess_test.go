package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/kaguya154/vectorize/internal/workerpool"
)

func encodePNG(t *testing.T, w, h int, fill func(x, y int) color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func solidColor(c color.Color) func(x, y int) color.Color {
	return func(x, y int) color.Color { return c }
}

func TestRunPreservesDimensionsForLargeEnoughImage(t *testing.T) {
	data := encodePNG(t, 10, 8, solidColor(color.RGBA{200, 50, 50, 255}))
	pool := workerpool.New(0)
	img, err := Run(data, Options{}, pool)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if img.Width != 10 || img.Height != 8 {
		t.Fatalf("Run() dims = (%d,%d), want (10,8)", img.Width, img.Height)
	}
}

func TestRunRejectsTooSmallImage(t *testing.T) {
	data := encodePNG(t, 2, 2, solidColor(color.RGBA{0, 0, 0, 255}))
	pool := workerpool.New(0)
	if _, err := Run(data, Options{}, pool); err == nil {
		t.Fatalf("Run() on a 2x2 image = nil error, want InvalidDimensions")
	}
}

func TestRunRejectsMalformedInput(t *testing.T) {
	pool := workerpool.New(0)
	if _, err := Run([]byte("not an image"), Options{}, pool); err == nil {
		t.Fatalf("Run() on malformed bytes = nil error, want DecodeFailed")
	}
}

func TestRunHonorsMaxDecodedBytes(t *testing.T) {
	data := encodePNG(t, 10, 10, solidColor(color.RGBA{1, 2, 3, 255}))
	pool := workerpool.New(0)
	_, err := Run(data, Options{MaxDecodedBytes: int64(len(data) - 1)}, pool)
	if err == nil {
		t.Fatalf("Run() with a byte limit below input size = nil error, want ResourceExhausted")
	}
}

func TestRunDownscalesToMaxDimension(t *testing.T) {
	data := encodePNG(t, 100, 50, solidColor(color.RGBA{80, 80, 80, 255}))
	pool := workerpool.New(0)
	img, err := Run(data, Options{MaxDimension: 20}, pool)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if img.Width > 20 || img.Height > 20 {
		t.Fatalf("Run() dims = (%d,%d), want larger side <= 20", img.Width, img.Height)
	}
	// Aspect ratio 2:1 should be roughly preserved.
	if img.Width != 20 {
		t.Fatalf("Run() width = %d, want 20 (the larger side)", img.Width)
	}
}

func TestRunCompositesAlphaOntoWhite(t *testing.T) {
	// Fully transparent pixels should end up close to white after
	// compositing, not left black/transparent.
	data := encodePNG(t, 6, 6, solidColor(color.RGBA{0, 0, 0, 0}))
	pool := workerpool.New(0)
	img, err := Run(data, Options{BlurRadius: 0}, pool)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	r, g, b := img.At(3, 3)
	if r < 200 || g < 200 || b < 200 {
		t.Fatalf("At(3,3) = (%d,%d,%d), want a near-white composite", r, g, b)
	}
}

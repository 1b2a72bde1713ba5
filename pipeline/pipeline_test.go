package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/kaguya154/vectorize/config"
	"github.com/kaguya154/vectorize/types"
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

func TestVectorizeSolidImageProducesNoAdditionalPaths(t *testing.T) {
	data := encodePNG(t, 100, 100, func(x, y int) color.Color {
		return color.RGBA{255, 0, 0, 255}
	})
	p := New(nil, nil, nil)
	cfg := config.Default(config.Fast)
	out, warnings, err := p.Vectorize(context.Background(), data, types.FormatPNG, cfg)
	if err != nil {
		t.Fatalf("Vectorize() error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("Vectorize() warnings = %v, want none", warnings)
	}
	if strings.Count(string(out), "<path") != 0 {
		t.Fatalf("Vectorize() on a solid image emitted extra <path> elements:\n%s", out)
	}
	if !strings.Contains(string(out), `<rect`) {
		t.Fatalf("Vectorize() output missing the background rect:\n%s", out)
	}
}

func TestVectorizeTwoColorSplitProducesASmallForegroundPathCount(t *testing.T) {
	data := encodePNG(t, 40, 20, func(x, y int) color.Color {
		if x < 20 {
			return color.RGBA{255, 0, 0, 255}
		}
		return color.RGBA{0, 255, 0, 255}
	})
	p := New(nil, nil, nil)
	cfg := config.Default(config.Fast)
	// Large enough that any thin anti-aliased boundary strip left by the
	// preprocessor's Gaussian blur gets folded back into its larger
	// neighbor rather than surviving as its own region.
	cfg.MinRegionPixels = 200
	out, _, err := p.Vectorize(context.Background(), data, types.FormatPNG, cfg)
	if err != nil {
		t.Fatalf("Vectorize() error: %v", err)
	}
	if n := strings.Count(string(out), "<path"); n < 1 || n > 2 {
		t.Fatalf("Vectorize() on a two-color split should emit 1-2 foreground paths, got %d:\n%s", n, out)
	}
}

func TestVectorizeRejectsInvalidInput(t *testing.T) {
	p := New(nil, nil, nil)
	cfg := config.Default(config.Fast)
	if _, _, err := p.Vectorize(context.Background(), []byte("garbage"), types.FormatPNG, cfg); err == nil {
		t.Fatalf("Vectorize() on garbage bytes = nil error, want DecodeFailed")
	}
}

func TestVectorizeRejectsInvalidConfigBeforeDoingWork(t *testing.T) {
	data := encodePNG(t, 10, 10, func(x, y int) color.Color { return color.RGBA{0, 0, 0, 255} })
	p := New(nil, nil, nil)
	cfg := config.Default(config.Fast)
	cfg.EdgeLowThreshold = 200
	cfg.EdgeHighThreshold = 10
	if _, _, err := p.Vectorize(context.Background(), data, types.FormatPNG, cfg); err == nil {
		t.Fatalf("Vectorize() with an invalid config = nil error, want InvalidConfiguration")
	}
}

func TestVectorizeHonorsCancellation(t *testing.T) {
	data := encodePNG(t, 64, 64, func(x, y int) color.Color {
		if (x/4+y/4)%2 == 0 {
			return color.RGBA{10, 10, 10, 255}
		}
		return color.RGBA{240, 240, 240, 255}
	})
	p := New(nil, nil, nil)
	cfg := config.Default(config.High)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	time.Sleep(time.Millisecond) // ensure ctx.Done() is observably closed

	if _, _, err := p.Vectorize(ctx, data, types.FormatPNG, cfg); err == nil {
		t.Fatalf("Vectorize() with an already-cancelled context = nil error, want Cancelled")
	}
}

func TestVectorizeEightByEightCheckerboardIsDeterministic(t *testing.T) {
	data := encodePNG(t, 8, 8, func(x, y int) color.Color {
		if (x+y)%2 == 0 {
			return color.RGBA{0, 0, 0, 255}
		}
		return color.RGBA{255, 255, 255, 255}
	})
	cfg := config.Default(config.Fast)
	cfg.BlurRadius = 0

	run := func() types.SvgBytes {
		p := New(nil, nil, nil)
		out, _, err := p.Vectorize(context.Background(), data, types.FormatPNG, cfg)
		if err != nil {
			t.Fatalf("Vectorize() error: %v", err)
		}
		return out
	}
	a, b := run(), run()
	if string(a) != string(b) {
		t.Fatalf("Vectorize() with a fixed seed produced non-deterministic output")
	}
}

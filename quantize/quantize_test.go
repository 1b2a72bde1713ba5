package quantize

import (
	"testing"

	"github.com/kaguya154/vectorize/internal/workerpool"
	"github.com/kaguya154/vectorize/types"
)

func checkerboard(w, h int, a, b types.RGB) *types.Image {
	img := types.NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := a
			if (x+y)%2 == 1 {
				c = b
			}
			img.Set(x, y, c.R, c.G, c.B)
		}
	}
	return img
}

func TestQuantizeTwoColorImageYieldsTwoUsedEntries(t *testing.T) {
	img := checkerboard(8, 8, types.RGB{255, 0, 0}, types.RGB{0, 255, 0})
	q := NewLabKMeans(Options{Seed: 1, UseLab: true, MaxIterations: 10})
	pool := workerpool.New(0)

	palette, idx, err := q.Quantize(img, 2, pool)
	if err != nil {
		t.Fatalf("Quantize() error: %v", err)
	}
	if palette.Len() != 2 {
		t.Fatalf("palette.Len() = %d, want 2", palette.Len())
	}

	used := map[uint16]bool{}
	for _, v := range idx.Index {
		if v >= uint16(palette.Len()) {
			t.Fatalf("index value %d out of range for palette of size %d", v, palette.Len())
		}
		used[v] = true
	}
	if len(used) != 2 {
		t.Fatalf("distinct used indices = %d, want 2", len(used))
	}
}

func TestQuantizeIsDeterministicForFixedSeed(t *testing.T) {
	img := checkerboard(12, 12, types.RGB{10, 200, 30}, types.RGB{220, 20, 90})
	pool := workerpool.New(0)

	run := func() *types.IndexMap {
		q := NewLabKMeans(Options{Seed: 42, UseLab: true, MaxIterations: 10})
		_, idx, err := q.Quantize(img, 4, pool)
		if err != nil {
			t.Fatalf("Quantize() error: %v", err)
		}
		return idx
	}
	a, b := run(), run()
	if len(a.Index) != len(b.Index) {
		t.Fatalf("index length mismatch")
	}
	for i := range a.Index {
		if a.Index[i] != b.Index[i] {
			t.Fatalf("Quantize() with a fixed seed produced different results at pixel %d: %d vs %d", i, a.Index[i], b.Index[i])
		}
	}
}

func TestQuantizePaletteSortedByLuminanceAscending(t *testing.T) {
	img := checkerboard(10, 10, types.RGB{0, 0, 0}, types.RGB{255, 255, 255})
	q := NewLabKMeans(Options{Seed: 7, UseLab: true, MaxIterations: 10})
	pool := workerpool.New(0)

	palette, _, err := q.Quantize(img, 2, pool)
	if err != nil {
		t.Fatalf("Quantize() error: %v", err)
	}
	for i := 1; i < palette.Len(); i++ {
		if palette.Entries[i].Lab.L < palette.Entries[i-1].Lab.L {
			t.Fatalf("palette entries not sorted by ascending luminance: entry %d (%v) < entry %d (%v)",
				i, palette.Entries[i].Lab.L, i-1, palette.Entries[i-1].Lab.L)
		}
	}
}

func TestQuantizeRejectsKOutOfRange(t *testing.T) {
	img := types.NewImage(4, 4)
	q := NewLabKMeans(Options{})
	pool := workerpool.New(0)
	if _, _, err := q.Quantize(img, 1, pool); err == nil {
		t.Fatalf("Quantize() with K=1 = nil error, want InvalidConfiguration")
	}
	if _, _, err := q.Quantize(img, 300, pool); err == nil {
		t.Fatalf("Quantize() with K=300 = nil error, want InvalidConfiguration")
	}
}

func TestQuantizeSolidImageYieldsSingleUsedIndex(t *testing.T) {
	img := checkerboard(6, 6, types.RGB{50, 60, 70}, types.RGB{50, 60, 70}) // uniform
	q := NewLabKMeans(Options{Seed: 3, UseLab: true, MaxIterations: 10})
	pool := workerpool.New(0)

	_, idx, err := q.Quantize(img, 4, pool)
	if err != nil {
		t.Fatalf("Quantize() error: %v", err)
	}
	first := idx.Index[0]
	for _, v := range idx.Index {
		if v != first {
			t.Fatalf("a solid-color image should quantize to a single index, found %d and %d", first, v)
		}
	}
}

package region

import (
	"sort"
	"testing"

	"github.com/kaguya154/vectorize/internal/workerpool"
	"github.com/kaguya154/vectorize/types"
)

func buildIndexMap(w, h int, rows []string) *types.IndexMap {
	idx := types.NewIndexMap(w, h)
	for y, row := range rows {
		for x := 0; x < w; x++ {
			if row[x] == '1' {
				idx.Set(x, y, 1)
			}
		}
	}
	return idx
}

// shoelaceSign returns +1 for a counter-clockwise closed polyline (in
// image coordinates, where Y grows downward) and -1 for clockwise.
func shoelaceSign(pts []types.Pt) int {
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	var sum int
	n := len(pts)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	switch {
	case sum > 0:
		return 1
	case sum < 0:
		return -1
	default:
		return 0
	}
}

func requireClosedLoop(t *testing.T, b types.Boundary) {
	t.Helper()
	if len(b.Points) < 5 {
		t.Fatalf("boundary has %d points, want at least 5 (4 edges + closing point)", len(b.Points))
	}
	if b.Points[0] != b.Points[len(b.Points)-1] {
		t.Fatalf("boundary is not closed: first=%v last=%v", b.Points[0], b.Points[len(b.Points)-1])
	}
}

func TestExtractSinglePixelSurroundedByRingHasOneHole(t *testing.T) {
	idx := buildIndexMap(3, 3, []string{
		"000",
		"010",
		"000",
	})
	pool := workerpool.New(0)
	regions, warnings, err := Extract(idx, Options{MinRegionPixels: 1}, pool)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("Extract() warnings = %v, want none", warnings)
	}
	if len(regions) != 2 {
		t.Fatalf("Extract() produced %d regions, want 2", len(regions))
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].PixelCount < regions[j].PixelCount })
	center, ring := regions[0], regions[1]

	if center.PixelCount != 1 {
		t.Fatalf("center region PixelCount = %d, want 1", center.PixelCount)
	}
	if len(center.Holes) != 0 {
		t.Fatalf("center region has %d holes, want 0", len(center.Holes))
	}
	requireClosedLoop(t, center.Outer)
	if sign := shoelaceSign(center.Outer.Points); sign != 1 {
		t.Fatalf("center outer boundary shoelace sign = %d, want +1 (CCW)", sign)
	}

	if ring.PixelCount != 8 {
		t.Fatalf("ring region PixelCount = %d, want 8", ring.PixelCount)
	}
	if len(ring.Holes) != 1 {
		t.Fatalf("ring region has %d holes, want 1", len(ring.Holes))
	}
	requireClosedLoop(t, ring.Outer)
	if sign := shoelaceSign(ring.Outer.Points); sign != 1 {
		t.Fatalf("ring outer boundary shoelace sign = %d, want +1 (CCW)", sign)
	}
	requireClosedLoop(t, ring.Holes[0])
	if sign := shoelaceSign(ring.Holes[0].Points); sign != -1 {
		t.Fatalf("ring hole boundary shoelace sign = %d, want -1 (CW)", sign)
	}
}

func TestExtractIsolatedPixelOnOpenBackgroundHasNoHole(t *testing.T) {
	// The foreground pixel sits on the image border (x=0), so the
	// background's not-in pocket touches the border directly and is never
	// an enclosed pocket, unlike the ring case above where it's interior.
	idx := buildIndexMap(4, 4, []string{
		"0000",
		"1000",
		"0000",
		"0000",
	})
	pool := workerpool.New(0)
	regions, _, err := Extract(idx, Options{MinRegionPixels: 1}, pool)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("Extract() produced %d regions, want 2", len(regions))
	}
	for _, r := range regions {
		if len(r.Holes) != 0 {
			t.Fatalf("region with %d pixels has %d holes, want 0 (background touches the image border)", r.PixelCount, len(r.Holes))
		}
	}
}

func TestExtractSolidImageYieldsOneRegion(t *testing.T) {
	idx := types.NewIndexMap(5, 5) // all zero
	pool := workerpool.New(0)
	regions, _, err := Extract(idx, Options{MinRegionPixels: 1}, pool)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("Extract() produced %d regions, want 1", len(regions))
	}
	if regions[0].PixelCount != 25 {
		t.Fatalf("PixelCount = %d, want 25", regions[0].PixelCount)
	}
	requireClosedLoop(t, regions[0].Outer)
}

func TestExtractReassignsOrphansBelowMinRegionPixels(t *testing.T) {
	// A single stray pixel of palette index 1 inside a sea of index 0,
	// with MinRegionPixels large enough that it must be folded in.
	idx := buildIndexMap(5, 5, []string{
		"00000",
		"00000",
		"00100",
		"00000",
		"00000",
	})
	pool := workerpool.New(0)
	regions, _, err := Extract(idx, Options{MinRegionPixels: 5}, pool)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("Extract() produced %d regions, want 1 after orphan reassignment", len(regions))
	}
	if regions[0].PixelCount != 25 {
		t.Fatalf("PixelCount = %d, want 25 after reassignment", regions[0].PixelCount)
	}
}

func TestExtractRejectsEmptyIndexMap(t *testing.T) {
	idx := &types.IndexMap{Width: 0, Height: 0}
	pool := workerpool.New(0)
	if _, _, err := Extract(idx, Options{}, pool); err == nil {
		t.Fatalf("Extract() on an empty IndexMap = nil error, want InvalidDimensions")
	}
}

func TestSortByPaintOrderLargestFirstTieBrokenByPaletteIndex(t *testing.T) {
	regions := []types.Region{
		{PaletteIndex: 2, PixelCount: 10},
		{PaletteIndex: 0, PixelCount: 20},
		{PaletteIndex: 1, PixelCount: 20},
		{PaletteIndex: 3, PixelCount: 5},
	}
	SortByPaintOrder(regions)

	want := []struct{ idx, count int }{
		{0, 20}, {1, 20}, {2, 10}, {3, 5},
	}
	for i, w := range want {
		if regions[i].PaletteIndex != w.idx || regions[i].PixelCount != w.count {
			t.Fatalf("regions[%d] = (idx=%d,count=%d), want (idx=%d,count=%d)",
				i, regions[i].PaletteIndex, regions[i].PixelCount, w.idx, w.count)
		}
	}
}

// Package region partitions an IndexMap into per-palette-index connected
// components and traces the oriented closed boundaries (outer and hole) of
// each surviving component as pixel-edge polylines.
package region

import (
	"sort"

	"github.com/kaguya154/vectorize/internal/workerpool"
	"github.com/kaguya154/vectorize/types"
)

// Options mirrors spec.md §4.4's configuration.
type Options struct {
	MinRegionPixels int // 0 means derive: max(8, 0.0001*W*H)
	MaxRegions      int // 0 means default 100000
}

// Extract labels idx into connected components, filters and reassigns
// orphaned small components, traces boundaries and holes for every surviving
// component, and returns the resulting regions in label order (paint
// ordering is applied separately by SortByPaintOrder).
func Extract(idx *types.IndexMap, opt Options, pool *workerpool.Pool) ([]types.Region, []types.Warning, error) {
	w, h := idx.Width, idx.Height
	if w <= 0 || h <= 0 {
		return nil, nil, types.NewError(types.KindInvalidDimensions, "empty index map", nil)
	}

	minPixels := opt.MinRegionPixels
	if minPixels <= 0 {
		minPixels = deriveMinRegionPixels(w, h)
	}
	maxRegions := opt.MaxRegions
	if maxRegions <= 0 {
		maxRegions = 100000
	}

	// Work on a private copy: orphan reassignment mutates palette indices.
	work := types.NewIndexMap(w, h)
	copy(work.Index, idx.Index)

	var warnings []types.Warning
	var labels []int32
	var sizes []int
	var palIdx []int

	const maxBudgetRetries = 6
	for attempt := 0; ; attempt++ {
		labels, sizes, palIdx = label(work)
		reassignOrphans(work, labels, sizes, palIdx, minPixels, pool)
		labels, sizes, palIdx = label(work)

		survivors := 0
		for _, s := range sizes {
			if s >= minPixels {
				survivors++
			}
		}
		if survivors <= maxRegions || attempt >= maxBudgetRetries {
			if survivors > maxRegions {
				warnings = append(warnings, types.Warning{
					Kind:    types.KindRegionBudgetExceeded,
					Message: "component count exceeds max_regions even after adaptive coarsening",
				})
			}
			break
		}
		warnings = append(warnings, types.Warning{
			Kind:    types.KindRegionBudgetExceeded,
			Message: "component count exceeds max_regions; raising min_region_pixels and retracing",
		})
		minPixels *= 2
	}

	numLabels := len(sizes)
	regions := make([]types.Region, numLabels)
	pool.ParallelFor(numLabels, func(l int) {
		regions[l] = traceComponent(work, labels, int32(l), palIdx[l], sizes[l], w, h)
	})

	return regions, warnings, nil
}

func deriveMinRegionPixels(w, h int) int {
	v := int(0.0001 * float64(w) * float64(h))
	if v < 8 {
		return 8
	}
	return v
}

// --- connected-components labeling (4-connectivity, union-find) ---

type unionFind struct{ parent []int32 }

func newUnionFind(n int) *unionFind {
	p := make([]int32, n)
	for i := range p {
		p[i] = int32(i)
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int32) int32 {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int32) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// label runs two-pass connected-components labeling within a single palette
// index, per spec.md §4.4 step 1. The union-find merge pass is serial; a
// lock-free parallel union-find has correctness pitfalls (concurrent path
// compression races) not worth the risk here, so only the tracing stage
// downstream is parallelized over the resulting labels.
func label(idx *types.IndexMap) (labels []int32, sizes []int, palIdx []int) {
	w, h := idx.Width, idx.Height
	n := w * h
	uf := newUnionFind(n)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if x > 0 && idx.Index[i] == idx.Index[i-1] {
				uf.union(int32(i), int32(i-1))
			}
			if y > 0 && idx.Index[i] == idx.Index[i-w] {
				uf.union(int32(i), int32(i-w))
			}
		}
	}

	canon := make(map[int32]int32)
	labels = make([]int32, n)
	for i := 0; i < n; i++ {
		root := uf.find(int32(i))
		l, ok := canon[root]
		if !ok {
			l = int32(len(canon))
			canon[root] = l
			sizes = append(sizes, 0)
			palIdx = append(palIdx, int(idx.Index[i]))
		}
		labels[i] = l
		sizes[l]++
	}
	return labels, sizes, palIdx
}

// reassignOrphans relocates pixels of components below minPixels to the
// palette index of their largest non-small neighbor component, per spec.md
// §4.4 step 2. Several passes are run because reassigning one orphan pixel
// can expose a path for its neighbors.
func reassignOrphans(work *types.IndexMap, labels []int32, sizes []int, palIdx []int, minPixels int, pool *workerpool.Pool) {
	w, h := work.Width, work.Height
	const maxPasses = 6
	for pass := 0; pass < maxPasses; pass++ {
		changed := make([]bool, w*h)
		anyChange := false
		pool.ParallelFor(h, func(y int) {
			for x := 0; x < w; x++ {
				i := y*w + x
				if sizes[labels[i]] >= minPixels {
					continue
				}
				bestSize := -1
				bestIdx := -1
				consider := func(nx, ny int) {
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						return
					}
					ni := ny*w + nx
					nl := labels[ni]
					if sizes[nl] < minPixels {
						return
					}
					if sizes[nl] > bestSize {
						bestSize = sizes[nl]
						bestIdx = palIdx[nl]
					}
				}
				consider(x-1, y)
				consider(x+1, y)
				consider(x, y-1)
				consider(x, y+1)
				if bestIdx >= 0 && int(work.Index[i]) != bestIdx {
					work.Index[i] = uint16(bestIdx)
					changed[i] = true
				}
			}
		})
		for _, c := range changed {
			if c {
				anyChange = true
				break
			}
		}
		if !anyChange {
			break
		}
		labels, sizes, palIdx = label(work)
	}
}

// --- boundary tracing ---

// direction is a clockwise-ordered compass direction: N, E, S, W.
type direction int

const (
	dirN direction = iota
	dirE
	dirS
	dirW
)

var dirDelta = [4]types.Pt{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}}

func rightOf(d direction) direction { return (d + 1) % 4 }
func leftOf(d direction) direction  { return (d + 3) % 4 }
func behind(d direction) direction  { return (d + 2) % 4 }

// traceComponent builds the Region for label l: its outer boundary and any
// enclosed holes.
func traceComponent(work *types.IndexMap, labels []int32, l int32, paletteIndex, pixelCount, w, h int) types.Region {
	in := func(x, y int) bool {
		if x < 0 || x >= w || y < 0 || y >= h {
			return false
		}
		return labels[y*w+x] == l
	}
	startX, startY := topLeftMost(in, w, h)
	outer := traceLoop(in, startX, startY, w, h)

	holes := findHoles(in, w, h)
	holePaths := make([]types.Boundary, len(holes))
	for i := range holes {
		hx, hy := topLeftMost(holes[i], w, h)
		loop := traceLoop(holes[i], hx, hy, w, h)
		reverse(loop.Points)
		holePaths[i] = loop
	}

	return types.Region{
		PaletteIndex: paletteIndex,
		PixelCount:   pixelCount,
		Outer:        outer,
		Holes:        holePaths,
	}
}

func topLeftMost(in func(x, y int) bool, w, h int) (int, int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if in(x, y) {
				return x, y
			}
		}
	}
	return 0, 0
}

// traceLoop walks the boundary of the region described by `in`, starting at
// the top-left corner of pixel (startX, startY), using the right-hand rule:
// at every vertex the chosen outgoing edge keeps `in` pixels on the walker's
// right, preferring a right turn, then straight, then left, then reversing,
// relative to the incoming direction. This is spec.md §4.4's Moore-neighbor
// tracing adapted to walk pixel edges rather than pixel centers; the vertex
// case table below is the standard 4-corner marching-squares boundary rule.
// The walk terminates on Jacob's stopping criterion: returning to the start
// vertex about to take the same first step (position and direction both
// match), which also resolves self-touching (pinch-point) boundaries.
func traceLoop(in func(x, y int) bool, startX, startY int, w, h int) types.Boundary {
	startV := types.Pt{X: startX, Y: startY}

	validEdge := func(v types.Pt, d direction) bool {
		ul := in(v.X-1, v.Y-1)
		ur := in(v.X, v.Y-1)
		ll := in(v.X-1, v.Y)
		lr := in(v.X, v.Y)
		switch d {
		case dirE:
			return lr && !ur
		case dirS:
			return ll && !lr
		case dirW:
			return ul && !ll
		case dirN:
			return ur && !ul
		}
		return false
	}

	inc := dirW
	v := startV
	points := []types.Pt{v}
	var firstDir direction
	for step := 0; ; step++ {
		var out direction
		found := false
		for _, cand := range [4]direction{rightOf(inc), inc, leftOf(inc), behind(inc)} {
			if validEdge(v, cand) {
				out = cand
				found = true
				break
			}
		}
		if !found {
			// Degenerate (shouldn't happen for a true boundary vertex);
			// stop to avoid an infinite loop.
			break
		}
		if step == 0 {
			firstDir = out
		} else if v == startV && out == firstDir {
			// About to repeat the very first edge: the loop has closed.
			break
		}
		next := types.Pt{X: v.X + dirDelta[out].X, Y: v.Y + dirDelta[out].Y}
		points = append(points, next)
		v = next
		inc = out
		if step > 4*w*h+8 {
			// Safety valve against an algorithmic bug producing a
			// non-terminating walk; never expected on a real boundary.
			break
		}
	}
	return types.Boundary{Points: points}
}

func reverse(pts []types.Pt) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

// findHoles locates every maximal background pocket fully enclosed by the
// region described by `in`, per spec.md §4.4: any interior pocket not
// connected to the outside (here, the image border, since `in` already
// excludes everything outside the component) is a hole.
//
// Background here is simply "not in"; because `in` is already restricted to
// one component's pixels, any background connected-component that never
// touches the image border is enclosed by this component and thus a hole.
func findHoles(in func(x, y int) bool, w, h int) []func(x, y int) bool {
	visited := make([]bool, w*h)
	reached := make([]bool, w*h)

	// Flood fill background reachable from the image border.
	var stack []types.Pt
	push := func(x, y int) {
		if x < 0 || x >= w || y < 0 || y >= h {
			return
		}
		i := y*w + x
		if in(x, y) || reached[i] {
			return
		}
		reached[i] = true
		stack = append(stack, types.Pt{X: x, Y: y})
	}
	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(p.X-1, p.Y)
		push(p.X+1, p.Y)
		push(p.X, p.Y-1)
		push(p.X, p.Y+1)
	}

	// Label remaining unreached background pockets.
	var holes []func(x, y int) bool
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if visited[i] || in(x, y) || reached[i] {
				continue
			}
			members := make(map[types.Pt]bool)
			var fstack []types.Pt
			fstack = append(fstack, types.Pt{X: x, Y: y})
			visited[i] = true
			members[types.Pt{X: x, Y: y}] = true
			for len(fstack) > 0 {
				p := fstack[len(fstack)-1]
				fstack = fstack[:len(fstack)-1]
				for _, d := range dirDelta {
					nx, ny := p.X+d.X, p.Y+d.Y
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					ni := ny*w + nx
					if visited[ni] || in(nx, ny) || reached[ni] {
						continue
					}
					visited[ni] = true
					members[types.Pt{X: nx, Y: ny}] = true
					fstack = append(fstack, types.Pt{X: nx, Y: ny})
				}
			}
			holes = append(holes, func(members map[types.Pt]bool) func(x, y int) bool {
				return func(x, y int) bool { return members[types.Pt{X: x, Y: y}] }
			}(members))
		}
	}
	return holes
}

// SortByPaintOrder orders regions largest-pixel-count first, ties broken by
// palette index ascending, per spec.md §3's paint-order invariant.
func SortByPaintOrder(regions []types.Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].PixelCount != regions[j].PixelCount {
			return regions[i].PixelCount > regions[j].PixelCount
		}
		return regions[i].PaletteIndex < regions[j].PaletteIndex
	})
}

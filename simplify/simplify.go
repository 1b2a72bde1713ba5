// Package simplify turns a pixel-edge boundary polyline into a compact
// smoothed Path: Douglas-Peucker simplification, corner classification, and
// the "two-thirds" quadratic Bézier construction, per spec.md §4.5.
package simplify

import (
	"math"

	"github.com/kaguya154/vectorize/types"
)

// Options mirrors spec.md §4.5's tolerances.
type Options struct {
	Tolerance          float64
	CornerAngleDegrees float64
	MustKeep           func(p types.Pt) bool // optional edge-detector hint
}

// Fit simplifies a closed boundary and fits it into a types.Path. Boundaries
// that collapse to fewer than 3 points after simplification are degenerate
// and reported via ok=false.
func Fit(b types.Boundary, opt Options) (types.Path, bool) {
	pts := b.Points
	if len(pts) == 0 {
		return types.Path{}, false
	}
	// Points are a closed loop whose first and last entries coincide (the
	// tracer emits the start vertex as both loop[0] and the final implicit
	// return); drop the duplicate terminator before simplifying.
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}

	if len(pts) <= 4 {
		return unitPolygon(pts), true
	}

	mustKeep := opt.MustKeep
	if mustKeep == nil {
		mustKeep = func(types.Pt) bool { return false }
	}
	tolerance := opt.Tolerance
	if tolerance <= 0 {
		tolerance = 1.0
	}

	simplified := douglasPeuckerClosed(pts, tolerance, mustKeep)
	if len(simplified) < 3 {
		return types.Path{}, false
	}

	cornerThreshold := opt.CornerAngleDegrees
	if cornerThreshold <= 0 {
		cornerThreshold = 60
	}
	corners := classifyCorners(simplified, cornerThreshold)

	return fitCurves(simplified, corners), true
}

// unitPolygon handles spec.md §4.5's edge case: a boundary of <=4 points
// collapses to a small polygon of at most 4 LineTos with no curve fitting.
func unitPolygon(pts []types.Pt) types.Path {
	path := types.Path{Start: toF(pts[0])}
	for i := 1; i < len(pts); i++ {
		path.Segs = append(path.Segs, types.Segment{Kind: types.SegLineTo, End: toF(pts[i])})
	}
	return path
}

func toF(p types.Pt) types.PtF { return types.PtF{X: float64(p.X), Y: float64(p.Y)} }

// douglasPeuckerClosed runs Douglas-Peucker on a closed polyline by treating
// the two points with maximum separation as the initial chord endpoints,
// then recursing on each half — the standard generalization of open-polyline
// DP to closed loops. The first point of the result is always retained (it
// doubles as the loop terminator), and must-keep points are never discarded.
func douglasPeuckerClosed(pts []types.Pt, tolerance float64, mustKeep func(types.Pt) bool) []types.Pt {
	n := len(pts)
	if n < 3 {
		return pts
	}

	a, b := farthestPair(pts)
	keep := make([]bool, n)
	keep[0] = true
	keep[a] = true
	keep[b] = true

	markKept(pts, a, b, tolerance, mustKeep, keep)
	markKept(pts, b, a, tolerance, mustKeep, keep)

	out := make([]types.Pt, 0, n)
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

func farthestPair(pts []types.Pt) (int, int) {
	n := len(pts)
	bestI, bestJ := 0, 1
	bestD := -1.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := float64(pts[i].X - pts[j].X)
			dy := float64(pts[i].Y - pts[j].Y)
			d := dx*dx + dy*dy
			if d > bestD {
				bestD, bestI, bestJ = d, i, j
			}
		}
	}
	return bestI, bestJ
}

// markKept recursively applies perpendicular-distance simplification to the
// arc from index i to index j walking forward (wrapping modulo len(pts)).
func markKept(pts []types.Pt, i, j int, tolerance float64, mustKeep func(types.Pt) bool, keep []bool) {
	n := len(pts)
	arc := arcIndices(i, j, n)
	if len(arc) <= 2 {
		return
	}
	p0, p1 := pts[arc[0]], pts[arc[len(arc)-1]]

	maxDist := -1.0
	maxIdx := -1
	for k := 1; k < len(arc)-1; k++ {
		d := perpDistance(pts[arc[k]], p0, p1)
		if mustKeep(pts[arc[k]]) {
			keep[arc[k]] = true
		}
		if d > maxDist {
			maxDist, maxIdx = d, k
		}
	}
	if maxDist > tolerance {
		keep[arc[maxIdx]] = true
		markKept(pts, i, arc[maxIdx], tolerance, mustKeep, keep)
		markKept(pts, arc[maxIdx], j, tolerance, mustKeep, keep)
	}
}

func arcIndices(i, j, n int) []int {
	var out []int
	for k := i; ; k = (k + 1) % n {
		out = append(out, k)
		if k == j {
			break
		}
	}
	return out
}

func perpDistance(p, a, b types.Pt) float64 {
	ax, ay := float64(a.X), float64(a.Y)
	bx, by := float64(b.X), float64(b.Y)
	px, py := float64(p.X), float64(p.Y)
	dx, dy := bx-ax, by-ay
	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	return math.Abs((px-ax)*dy-(py-ay)*dx) / length
}

// classifyCorners computes the turning angle at each retained point and
// marks it as a corner when |pi - angle| >= threshold, per spec.md §4.5
// step 2.
func classifyCorners(pts []types.Pt, thresholdDeg float64) []bool {
	n := len(pts)
	corners := make([]bool, n)
	thresholdRad := thresholdDeg * math.Pi / 180
	for i := 0; i < n; i++ {
		prev := pts[(i-1+n)%n]
		cur := pts[i]
		next := pts[(i+1)%n]
		v1x, v1y := float64(cur.X-prev.X), float64(cur.Y-prev.Y)
		v2x, v2y := float64(next.X-cur.X), float64(next.Y-cur.Y)
		l1, l2 := math.Hypot(v1x, v1y), math.Hypot(v2x, v2y)
		if l1 == 0 || l2 == 0 {
			corners[i] = true
			continue
		}
		dot := (v1x*v2x + v1y*v2y) / (l1 * l2)
		dot = math.Max(-1, math.Min(1, dot))
		angle := math.Acos(dot)
		turning := math.Pi - angle
		if math.Abs(math.Pi-turning) >= thresholdRad {
			corners[i] = true
		}
	}
	return corners
}

// fitCurves walks contiguous runs of smooth points, emitting a quadratic
// Bézier per the "two-thirds" construction for each smooth triple and a
// LineTo at every corner and at run boundaries, per spec.md §4.5 step 3-4.
func fitCurves(pts []types.Pt, corners []bool) types.Path {
	n := len(pts)
	path := types.Path{Start: toF(pts[0])}

	cur := toF(pts[0])
	for i := 1; i <= n; i++ {
		idx := i % n
		p := pts[idx]
		prevIdx := (idx - 1 + n) % n
		if corners[idx] || corners[prevIdx] {
			// Corner boundary: flush with a line-to, per spec.md §4.5 step 3.
			path.Segs = append(path.Segs, types.Segment{Kind: types.SegLineTo, End: toF(p)})
			cur = toF(p)
			continue
		}
		// Smooth point: two-thirds quadratic construction using the
		// midpoints of the adjacent chords as curve endpoints and the point
		// itself as the control point.
		prev := pts[prevIdx]
		start := midpoint(prev, p)
		endIdx := (idx + 1) % n
		end := midpoint(p, pts[endIdx])
		if start != cur {
			path.Segs = append(path.Segs, types.Segment{Kind: types.SegLineTo, End: start})
		}
		path.Segs = append(path.Segs, types.Segment{Kind: types.SegQuadTo, Ctrl: toF(p), End: end})
		cur = end
	}
	if cur != path.Start {
		path.Segs = append(path.Segs, types.Segment{Kind: types.SegLineTo, End: path.Start})
	}
	return path
}

func midpoint(a, b types.Pt) types.PtF {
	return types.PtF{X: float64(a.X+b.X) / 2, Y: float64(a.Y+b.Y) / 2}
}

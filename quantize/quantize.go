// Package quantize reduces an image's color palette to K representative
// colors by clustering pixels in a perceptually uniform color space
// (CIE L*a*b*, via github.com/lucasb-eyer/go-colorful) or, with UseLab
// false, in linear RGB.
//
// The seeding/iteration/stopping-criterion shape follows the teacher's
// medianCutQuantize (collect pixels, refine buckets, take means) but
// replaces median-cut splitting with seeded k-means++ and Lloyd iteration,
// since the spec's reproducibility and stopping-criterion requirements
// (seeded RNG, max-centroid-movement threshold in Lab units) aren't
// expressible with median-cut.
package quantize

import (
	"math"
	"math/rand"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/kaguya154/vectorize/internal/workerpool"
	"github.com/kaguya154/vectorize/types"
)

// Quantizer is the pluggable interface selected once at pipeline
// construction (see spec.md §9's "dynamic module loading" re-architecture
// note): a faster or ML-backed implementation satisfies the same contract.
type Quantizer interface {
	Quantize(img *types.Image, k int, pool *workerpool.Pool) (*types.Palette, *types.IndexMap, error)
}

// Options configures LabKMeans.
type Options struct {
	MaxIterations int
	Seed          uint64
	UseLab        bool
}

// LabKMeans is the reference Quantizer: perceptual k-means per spec.md §4.2.
type LabKMeans struct {
	Opt Options
}

// NewLabKMeans builds a LabKMeans quantizer with the given options, filling
// in spec-mandated defaults for zero fields.
func NewLabKMeans(opt Options) *LabKMeans {
	if opt.MaxIterations <= 0 {
		opt.MaxIterations = 10
	}
	return &LabKMeans{Opt: opt}
}

type vec3 struct{ a, b, c float64 }

func (v vec3) sub(o vec3) vec3 { return vec3{v.a - o.a, v.b - o.b, v.c - o.c} }
func (v vec3) sqNorm() float64 { return v.a*v.a + v.b*v.b + v.c*v.c }

// Quantize implements Quantizer.
func (q *LabKMeans) Quantize(img *types.Image, k int, pool *workerpool.Pool) (*types.Palette, *types.IndexMap, error) {
	if k < 2 || k > 256 {
		return nil, nil, types.NewError(types.KindInvalidConfiguration, "K out of range [2,256]", nil)
	}

	n := img.Width * img.Height
	points := make([]vec3, n)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.At(x, y)
			points[y*img.Width+x] = toColorSpace(r, g, b, q.Opt.UseLab)
		}
	}

	centroids := seedKMeansPlusPlus(points, k, q.Opt.Seed)

	assign := make([]int, n)
	const moveTolerance = 1e-3
	maxIter := q.Opt.MaxIterations
	if maxIter <= 0 {
		maxIter = 10
	}

	for iter := 0; iter < maxIter; iter++ {
		assignPoints(points, centroids, assign, pool)

		newCentroids, counts := updateCentroids(points, assign, k)
		maxMove := 0.0
		for i := 0; i < k; i++ {
			if counts[i] == 0 {
				// Skip empty clusters, retaining their previous centroid.
				newCentroids[i] = centroids[i]
				continue
			}
			d := math.Sqrt(newCentroids[i].sub(centroids[i]).sqNorm())
			if d > maxMove {
				maxMove = d
			}
		}
		centroids = newCentroids
		if maxMove < moveTolerance {
			break
		}
	}
	assignPoints(points, centroids, assign, pool)

	palette := buildPalette(centroids, q.Opt.UseLab)
	order := sortPaletteByLuminance(palette)

	idx := types.NewIndexMap(img.Width, img.Height)
	for i, a := range assign {
		idx.Index[i] = uint16(order[a])
	}

	return palette, idx, nil
}

// toColorSpace converts an sRGB triple to Lab or linear RGB depending on
// useLab, per spec.md §4.2 step 1.
func toColorSpace(r, g, b uint8, useLab bool) vec3 {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	if useLab {
		l, a, bb := c.Lab()
		return vec3{l, a, bb}
	}
	lr, lg, lb := c.LinearRgb()
	return vec3{lr, lg, lb}
}

func fromColorSpace(v vec3, useLab bool) types.RGB {
	var c colorful.Color
	if useLab {
		c = colorful.Lab(v.a, v.b, v.c)
	} else {
		c = colorful.LinearRgb(v.a, v.b, v.c)
	}
	c = c.Clamped()
	return types.RGB{R: uint8(c.R*255 + 0.5), G: uint8(c.G*255 + 0.5), B: uint8(c.B*255 + 0.5)}
}

// seedKMeansPlusPlus implements spec.md §4.2 step 2: the first centroid is
// picked uniformly at random from a seeded source; each subsequent centroid
// is picked with probability proportional to its squared distance from any
// already-chosen centroid.
func seedKMeansPlusPlus(points []vec3, k int, seed uint64) []vec3 {
	rng := rand.New(rand.NewSource(int64(seed)))
	n := len(points)
	centroids := make([]vec3, 0, k)

	first := points[rng.Intn(n)]
	centroids = append(centroids, first)

	dist := make([]float64, n)
	for i, p := range points {
		dist[i] = p.sub(first).sqNorm()
	}

	for len(centroids) < k {
		var sum float64
		for _, d := range dist {
			sum += d
		}
		var next vec3
		if sum <= 0 {
			// All remaining points coincide with a chosen centroid; fall
			// back to a fixed-stride pick for determinism.
			next = points[(len(centroids)*n/k)%n]
		} else {
			target := rng.Float64() * sum
			var acc float64
			idx := n - 1
			for i, d := range dist {
				acc += d
				if acc >= target {
					idx = i
					break
				}
			}
			next = points[idx]
		}
		centroids = append(centroids, next)
		for i, p := range points {
			d := p.sub(next).sqNorm()
			if d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

// assignPoints is the embarrassingly-parallel assignment step of spec.md
// §5: every worker accumulates into its own disjoint output range, no locks
// on the hot path. Ties (equidistant centroids) go to the lower index.
func assignPoints(points []vec3, centroids []vec3, assign []int, pool *workerpool.Pool) {
	pool.ParallelFor(len(points), func(i int) {
		p := points[i]
		best := 0
		bestD := math.MaxFloat64
		for ci, c := range centroids {
			d := p.sub(c).sqNorm()
			if d < bestD {
				bestD = d
				best = ci
			}
		}
		assign[i] = best
	})
}

// updateCentroids is a single-threaded reduction over every point: a
// sum+count per cluster, collapsed to a mean.
func updateCentroids(points []vec3, assign []int, k int) ([]vec3, []int) {
	sums := make([]vec3, k)
	counts := make([]int, k)
	for i, p := range points {
		c := assign[i]
		sums[c].a += p.a
		sums[c].b += p.b
		sums[c].c += p.c
		counts[c]++
	}
	out := make([]vec3, k)
	for i := range sums {
		if counts[i] == 0 {
			continue
		}
		n := float64(counts[i])
		out[i] = vec3{sums[i].a / n, sums[i].b / n, sums[i].c / n}
	}
	return out, counts
}

func buildPalette(centroids []vec3, useLab bool) *types.Palette {
	entries := make([]types.PaletteEntry, len(centroids))
	for i, c := range centroids {
		rgb := fromColorSpace(c, useLab)
		col := colorful.Color{R: float64(rgb.R) / 255, G: float64(rgb.G) / 255, B: float64(rgb.B) / 255}
		l, a, b := col.Lab()
		entries[i] = types.PaletteEntry{RGB: rgb, Lab: types.LabColor{L: l, A: a, B: b}}
	}
	return &types.Palette{Entries: entries}
}

// sortPaletteByLuminance sorts palette.Entries by perceived luminance
// ascending (dark -> light) per spec.md §4.2, and returns oldIndex ->
// newIndex so IndexMap cells can be remapped.
func sortPaletteByLuminance(palette *types.Palette) []int {
	type kv struct {
		oldIdx int
		lum    float64
	}
	kvs := make([]kv, len(palette.Entries))
	for i, e := range palette.Entries {
		kvs[i] = kv{i, e.Lab.L}
	}
	sort.SliceStable(kvs, func(i, j int) bool { return kvs[i].lum < kvs[j].lum })

	order := make([]int, len(kvs))
	newEntries := make([]types.PaletteEntry, len(kvs))
	for newIdx, e := range kvs {
		order[e.oldIdx] = newIdx
		newEntries[newIdx] = palette.Entries[e.oldIdx]
	}
	palette.Entries = newEntries
	return order
}

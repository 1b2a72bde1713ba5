// Package edgedetect computes a binary edge mask from a preprocessed image.
// It implements the Sobel baseline required for conformance plus the Canny
// and AiEnhanced variants from spec.md §4.3. No neural inference is
// performed for AiEnhanced — per spec.md §9, the name is historical and the
// interface is the pluggable extension point an ONNX-backed detector would
// satisfy.
package edgedetect

import (
	"math"

	"github.com/kaguya154/vectorize/internal/workerpool"
	"github.com/kaguya154/vectorize/types"
)

// Variant selects which algorithm Detect runs.
type Variant int

const (
	Sobel Variant = iota
	Canny
	AiEnhanced
)

// Options mirrors spec.md §4.3's thresholds.
type Options struct {
	LowThreshold  uint8
	HighThreshold uint8
	Variant       Variant
}

// EdgeDetector is the pluggable edge-detection interface. The pipeline does
// not accept one at construction; it builds a Detector from its config on
// every Vectorize call.
type EdgeDetector interface {
	Detect(img *types.Image, pool *workerpool.Pool) (*types.EdgeMask, error)
}

// Detector is the reference EdgeDetector.
type Detector struct {
	Opt Options
}

// NewDetector validates thresholds and returns a Detector, per spec.md
// §4.3's InvalidConfiguration failure mode.
func NewDetector(opt Options) (*Detector, error) {
	if opt.LowThreshold > opt.HighThreshold {
		return nil, types.NewError(types.KindInvalidConfiguration, "low_threshold > high_threshold", nil)
	}
	if opt.HighThreshold == 0 {
		opt.HighThreshold = 90
		opt.LowThreshold = 30
	}
	return &Detector{Opt: opt}, nil
}

func (d *Detector) Detect(img *types.Image, pool *workerpool.Pool) (*types.EdgeMask, error) {
	if img.Width < 3 || img.Height < 3 {
		return nil, types.NewError(types.KindInvalidDimensions, "image smaller than 3x3", nil)
	}

	lum := luminance(img, pool)
	gx, gy := sobelGradients(lum, img.Width, img.Height, pool)

	switch d.Opt.Variant {
	case Sobel:
		return thresholdMagnitude(gx, gy, img.Width, img.Height, d.Opt.HighThreshold, pool), nil
	case Canny:
		return canny(gx, gy, img.Width, img.Height, d.Opt.LowThreshold, d.Opt.HighThreshold, pool), nil
	case AiEnhanced:
		gx5, gy5 := sobelGradients5(lum, img.Width, img.Height, pool)
		mag := make([]float64, img.Width*img.Height)
		pool.ParallelFor(img.Height, func(y int) {
			for x := 0; x < img.Width; x++ {
				i := y*img.Width + x
				m3 := math.Hypot(gx[i], gy[i])
				m5 := math.Hypot(gx5[i], gy5[i])
				mag[i] = math.Max(m3, m5)
			}
		})
		return hysteresis(mag, img.Width, img.Height, d.Opt.LowThreshold, d.Opt.HighThreshold, pool), nil
	default:
		return types.NewEdgeMask(img.Width, img.Height), nil
	}
}

// luminance converts to Rec. 709 luma, parallel over rows.
func luminance(img *types.Image, pool *workerpool.Pool) []float64 {
	out := make([]float64, img.Width*img.Height)
	pool.ParallelFor(img.Height, func(y int) {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.At(x, y)
			out[y*img.Width+x] = 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
		}
	})
	return out
}

var sobelGx3 = [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
var sobelGy3 = [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}

// sobelGradients convolves lum with the 3x3 Sobel kernels, parallel over
// rows with a one-row halo read per spec.md §5.
func sobelGradients(lum []float64, w, h int, pool *workerpool.Pool) (gx, gy []float64) {
	gx = make([]float64, w*h)
	gy = make([]float64, w*h)
	pool.ParallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			var sx, sy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					px := clampInt(x+kx, 0, w-1)
					py := clampInt(y+ky, 0, h-1)
					v := lum[py*w+px]
					sx += v * sobelGx3[ky+1][kx+1]
					sy += v * sobelGy3[ky+1][kx+1]
				}
			}
			gx[y*w+x] = sx
			gy[y*w+x] = sy
		}
	})
	return
}

// sobelGradients5 is the 5x5 Sobel kernel used by the AiEnhanced variant's
// multi-scale combination (spec.md §4.3).
var sobelGx5 = [5][5]float64{
	{-2, -1, 0, 1, 2},
	{-2, -1, 0, 1, 2},
	{-4, -2, 0, 2, 4},
	{-2, -1, 0, 1, 2},
	{-2, -1, 0, 1, 2},
}
var sobelGy5 = [5][5]float64{
	{-2, -2, -4, -2, -2},
	{-1, -1, -2, -1, -1},
	{0, 0, 0, 0, 0},
	{1, 1, 2, 1, 1},
	{2, 2, 4, 2, 2},
}

func sobelGradients5(lum []float64, w, h int, pool *workerpool.Pool) (gx, gy []float64) {
	gx = make([]float64, w*h)
	gy = make([]float64, w*h)
	pool.ParallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			var sx, sy float64
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					px := clampInt(x+kx, 0, w-1)
					py := clampInt(y+ky, 0, h-1)
					v := lum[py*w+px]
					sx += v * sobelGx5[ky+2][kx+2]
					sy += v * sobelGy5[ky+2][kx+2]
				}
			}
			gx[y*w+x] = sx
			gy[y*w+x] = sy
		}
	})
	return
}

// thresholdMagnitude is the Sobel baseline: magnitude sqrt(Gx^2+Gy^2)
// clamped to 255, thresholded at highThreshold.
func thresholdMagnitude(gx, gy []float64, w, h int, highThreshold uint8, pool *workerpool.Pool) *types.EdgeMask {
	mask := types.NewEdgeMask(w, h)
	pool.ParallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := math.Hypot(gx[i], gy[i])
			if m > 255 {
				m = 255
			}
			if m >= float64(highThreshold) {
				mask.Pix[i] = 255
			}
		}
	})
	return mask
}

// canny runs non-maximum suppression along the quantized gradient direction
// followed by double-threshold hysteresis (spec.md §4.3).
func canny(gx, gy []float64, w, h int, low, high uint8, pool *workerpool.Pool) *types.EdgeMask {
	mag := make([]float64, w*h)
	pool.ParallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			i := y*w + x
			mag[i] = math.Hypot(gx[i], gy[i])
		}
	})

	suppressed := make([]float64, w*h)
	pool.ParallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			i := y*w + x
			dir := quantizeDirection(gx[i], gy[i])
			n1x, n1y, n2x, n2y := neighborsForDirection(dir)
			ax, ay := clampInt(x+n1x, 0, w-1), clampInt(y+n1y, 0, h-1)
			bx, by := clampInt(x+n2x, 0, w-1), clampInt(y+n2y, 0, h-1)
			m := mag[i]
			if m >= mag[ay*w+ax] && m >= mag[by*w+bx] {
				suppressed[i] = m
			}
		}
	})

	return hysteresis(suppressed, w, h, low, high, pool)
}

// quantizeDirection buckets a gradient vector into 0/45/90/135 degrees.
func quantizeDirection(gx, gy float64) int {
	if gx == 0 && gy == 0 {
		return 0
	}
	angle := math.Atan2(gy, gx) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	switch {
	case angle < 22.5 || angle >= 157.5:
		return 0
	case angle < 67.5:
		return 45
	case angle < 112.5:
		return 90
	default:
		return 135
	}
}

func neighborsForDirection(dir int) (n1x, n1y, n2x, n2y int) {
	switch dir {
	case 0:
		return -1, 0, 1, 0
	case 45:
		return -1, 1, 1, -1
	case 90:
		return 0, -1, 0, 1
	default: // 135
		return -1, -1, 1, 1
	}
}

// hysteresis implements double-threshold linking: strong edges (>= high)
// seed a single serial stack-based flood fill over 8-connected neighbors
// that keeps any weak pixel (>= low) connected to a strong pixel.
func hysteresis(mag []float64, w, h int, low, high uint8, pool *workerpool.Pool) *types.EdgeMask {
	mask := types.NewEdgeMask(w, h)
	strong := make([]bool, w*h)
	weak := make([]bool, w*h)

	pool.ParallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			i := y*w + x
			switch {
			case mag[i] >= float64(high):
				strong[i] = true
			case mag[i] >= float64(low):
				weak[i] = true
			}
		}
	})

	kept := make([]bool, w*h)
	var stack []int
	for i, s := range strong {
		if s {
			kept[i] = true
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := x+dx, y+dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				if !kept[ni] && (weak[ni] || strong[ni]) {
					kept[ni] = true
					stack = append(stack, ni)
				}
			}
		}
	}

	for i, k := range kept {
		if k {
			mask.Pix[i] = 255
		}
	}
	return mask
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

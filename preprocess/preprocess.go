// Package preprocess decodes a raw PNG/JPEG byte buffer, composites any
// alpha onto opaque white, optionally downscales, blurs, and contrast
// stretches it, and produces a clean types.Image of known dimensions.
package preprocess

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/kaguya154/vectorize/internal/workerpool"
	"github.com/kaguya154/vectorize/types"
)

// Options mirrors spec.md §4.1's preprocessing configuration.
type Options struct {
	MaxDimension    int // 0 means unset
	BlurRadius      float64
	ContrastBoost   float64
	MaxDecodedBytes int64 // 0 means unset
}

// Run decodes imageBytes, normalizes it to RGB 8-bit, and applies the
// configured blur/contrast/downscale passes.
func Run(imageBytes []byte, opt Options, pool *workerpool.Pool) (*types.Image, error) {
	if opt.MaxDecodedBytes > 0 && int64(len(imageBytes)) > opt.MaxDecodedBytes {
		return nil, types.NewError(types.KindResourceExhausted,
			"input buffer exceeds caller-supplied limit", nil)
	}

	src, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, types.NewError(types.KindDecodeFailed, "unsupported or malformed encoding", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, types.NewError(types.KindInvalidDimensions, "zero or negative dimensions after decode", nil)
	}

	img := compositeOnWhite(src, pool)

	if opt.MaxDimension > 0 {
		if larger := max(w, h); larger > opt.MaxDimension {
			img = downscale(img, opt.MaxDimension)
		}
	}

	if img.Width < 3 || img.Height < 3 {
		return nil, types.NewError(types.KindInvalidDimensions, "image smaller than 3x3", nil)
	}

	blurRadius := opt.BlurRadius
	if blurRadius <= 0 {
		blurRadius = 0.5
	}
	if blurRadius > 0 {
		img = gaussianBlur(img, blurRadius, pool)
	}

	boost := opt.ContrastBoost
	if boost == 0 {
		boost = 1.0
	}
	if boost != 1.0 {
		contrastStretch(img, boost, pool)
	}

	return img, nil
}

// compositeOnWhite flattens any alpha channel onto opaque white, parallel
// over output rows per spec.md §5.
func compositeOnWhite(src image.Image, pool *workerpool.Pool) *types.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := types.NewImage(w, h)

	pool.ParallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			r, g, bl, a := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if a == 0xffff {
				out.Set(x, y, uint8(r>>8), uint8(g>>8), uint8(bl>>8))
				continue
			}
			af := float64(a) / 0xffff
			rr := uint8(float64(r>>8)*af + 255*(1-af))
			gg := uint8(float64(g>>8)*af + 255*(1-af))
			bb := uint8(float64(bl>>8)*af + 255*(1-af))
			out.Set(x, y, rr, gg, bb)
		}
	})
	return out
}

// downscale resizes img so its larger side equals maxDim, preserving aspect
// ratio, using a high-quality filter as required by spec.md §4.1.
func downscale(img *types.Image, maxDim int) *types.Image {
	scale := float64(maxDim) / float64(max(img.Width, img.Height))
	nw := max(1, int(float64(img.Width)*scale+0.5))
	nh := max(1, int(float64(img.Height)*scale+0.5))

	src := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.At(x, y)
			src.Set(x, y, colorRGBA{r, g, b, 255})
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	out := types.NewImage(nw, nh)
	for y := 0; y < nh; y++ {
		for x := 0; x < nw; x++ {
			o := dst.PixOffset(x, y)
			out.Set(x, y, dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2])
		}
	}
	return out
}

type colorRGBA struct{ R, G, B, A uint8 }

func (c colorRGBA) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R) * 0x101
	g = uint32(c.G) * 0x101
	b = uint32(c.B) * 0x101
	a = uint32(c.A) * 0x101
	return
}

// gaussianBlur applies a separable Gaussian kernel, parallel over output
// rows (and columns for the second pass), suppressing JPEG noise before
// quantization per spec.md §4.1.
func gaussianBlur(img *types.Image, radius float64, pool *workerpool.Pool) *types.Image {
	kernel := gaussianKernel(radius)
	half := len(kernel) / 2

	horiz := types.NewImage(img.Width, img.Height)
	pool.ParallelFor(img.Height, func(y int) {
		for x := 0; x < img.Width; x++ {
			var sr, sg, sb float64
			for k, wt := range kernel {
				sx := clamp(x+k-half, 0, img.Width-1)
				r, g, b := img.At(sx, y)
				sr += float64(r) * wt
				sg += float64(g) * wt
				sb += float64(b) * wt
			}
			horiz.Set(x, y, clampByte(sr), clampByte(sg), clampByte(sb))
		}
	})

	out := types.NewImage(img.Width, img.Height)
	pool.ParallelFor(img.Width, func(x int) {
		for y := 0; y < img.Height; y++ {
			var sr, sg, sb float64
			for k, wt := range kernel {
				sy := clamp(y+k-half, 0, img.Height-1)
				r, g, b := horiz.At(x, sy)
				sr += float64(r) * wt
				sg += float64(g) * wt
				sb += float64(b) * wt
			}
			out.Set(x, y, clampByte(sr), clampByte(sg), clampByte(sb))
		}
	})
	return out
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(sigma*3 + 0.5)
	if radius < 1 {
		radius = 1
	}
	size := 2*radius + 1
	k := make([]float64, size)
	var sum float64
	for i := 0; i < size; i++ {
		x := float64(i - radius)
		v := math.Exp(-(x * x) / (2 * sigma * sigma))
		k[i] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// contrastStretch applies a linear contrast stretch around 128, in place,
// parallel over rows.
func contrastStretch(img *types.Image, boost float64, pool *workerpool.Pool) {
	pool.ParallelFor(img.Height, func(y int) {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.At(x, y)
			nr := clampByte((float64(r)-128)*boost + 128)
			ng := clampByte((float64(g)-128)*boost + 128)
			nb := clampByte((float64(b)-128)*boost + 128)
			img.Set(x, y, nr, ng, nb)
		}
	})
}

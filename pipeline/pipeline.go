// Package pipeline wires the five vectorization stages — Preprocessor,
// Quantizer, Edge Detector, Region Extractor & Tracer, Simplifier & SVG
// Assembler — into the single Vectorize entry point described in spec.md
// §6. The Quantizer can be selected once at construction time (spec.md §9's
// constructor-injection re-architecture note); the Edge Detector cannot be
// injected and is built from the config inside every Vectorize call. No
// stage reads from a package-level global: the worker pool and logger are
// explicit Pipeline fields, and the RNG seed arrives in config.Config.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/kaguya154/vectorize/config"
	"github.com/kaguya154/vectorize/edgedetect"
	"github.com/kaguya154/vectorize/internal/workerpool"
	"github.com/kaguya154/vectorize/preprocess"
	"github.com/kaguya154/vectorize/quantize"
	"github.com/kaguya154/vectorize/region"
	"github.com/kaguya154/vectorize/simplify"
	"github.com/kaguya154/vectorize/svgassemble"
	"github.com/kaguya154/vectorize/types"
)

// Pipeline owns the worker pool and the pluggable Quantizer implementation
// used for every Vectorize call. It holds no EdgeDetector: Vectorize builds
// an edgedetect.Detector from cfg on each call.
type Pipeline struct {
	Pool      *workerpool.Pool
	Quantizer quantize.Quantizer
	Log       *slog.Logger
}

// New builds a Pipeline with a pool sized to GOMAXPROCS by default. quantizer
// may be nil, in which case Vectorize builds the reference LabKMeans
// quantizer per-call from cfg; passing one here is the constructor-injection
// point spec.md §9 requires for swapping in an accelerated implementation —
// selection happens once here, never by runtime introspection inside a hot
// loop. log may be nil, in which case a discarding logger is used — the core
// never logs to stdout on its own, per spec.md §6.
func New(pool *workerpool.Pool, quantizer quantize.Quantizer, log *slog.Logger) *Pipeline {
	if pool == nil {
		pool = workerpool.New(0)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}
	return &Pipeline{Pool: pool, Quantizer: quantizer, Log: log}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Vectorize implements spec.md §6's entry point:
//
//	vectorize(image_bytes, format_hint, config) -> Result<SvgBytes, CoreError>
//
// ctx realizes the distilled spec's cancel_token: the idiomatic Go
// cancellation mechanism, polled between stages only. The Quantizer, Edge
// Detector, and Region Extractor do not check ctx inside their own loops, so
// a cancellation is observed once the running stage returns.
func (p *Pipeline) Vectorize(ctx context.Context, imageBytes []byte, format types.FormatHint, cfg config.Config) (types.SvgBytes, []types.Warning, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if workerpool.Cancelled(ctx) {
		return nil, nil, types.NewError(types.KindCancelled, "cancelled before pipeline start", nil)
	}

	img, err := preprocess.Run(imageBytes, preprocess.Options{
		MaxDimension:    cfg.MaxDimension,
		BlurRadius:      cfg.BlurRadius,
		ContrastBoost:   cfg.ContrastBoost,
		MaxDecodedBytes: cfg.MaxDecodedBytes,
	}, p.Pool)
	if err != nil {
		return nil, nil, err
	}
	p.Log.Debug("preprocessed image", "width", img.Width, "height", img.Height)

	if workerpool.Cancelled(ctx) {
		return nil, nil, types.NewError(types.KindCancelled, "cancelled after preprocessing", nil)
	}

	quantizer := p.Quantizer
	if quantizer == nil {
		quantizer = quantize.NewLabKMeans(quantize.Options{
			MaxIterations: cfg.MaxIterations,
			Seed:          cfg.Seed,
			UseLab:        cfg.UseLab,
		})
	}

	var palette *types.Palette
	var idx *types.IndexMap
	var mask *types.EdgeMask
	var quantErr, edgeErr error

	// Quantizer and Edge Detector run concurrently per spec.md §2/§5; each
	// writes into its own disjoint result variable, joined by a WaitGroup.
	runConcurrent(func() {
		palette, idx, quantErr = quantizer.Quantize(img, cfg.K(), p.Pool)
	}, func() {
		if cfg.EdgeVariant == config.EdgeNone {
			return
		}
		detector, derr := edgedetect.NewDetector(edgedetect.Options{
			LowThreshold:  cfg.EdgeLowThreshold,
			HighThreshold: cfg.EdgeHighThreshold,
			Variant:       edgeVariant(cfg.EdgeVariant),
		})
		if derr != nil {
			edgeErr = derr
			return
		}
		mask, edgeErr = detector.Detect(img, p.Pool)
	})
	if quantErr != nil {
		return nil, nil, quantErr
	}
	if edgeErr != nil {
		return nil, nil, edgeErr
	}
	p.Log.Debug("quantized", "k", palette.Len())

	if workerpool.Cancelled(ctx) {
		return nil, nil, types.NewError(types.KindCancelled, "cancelled after quantize/edge-detect", nil)
	}

	regions, warnings, err := region.Extract(idx, region.Options{
		MinRegionPixels: cfg.MinRegionPixels,
		MaxRegions:      cfg.MaxRegions,
	}, p.Pool)
	if err != nil {
		return nil, nil, err
	}
	p.Log.Debug("extracted regions", "count", len(regions))

	if workerpool.Cancelled(ctx) {
		return nil, nil, types.NewError(types.KindCancelled, "cancelled after region extraction", nil)
	}

	region.SortByPaintOrder(regions)
	if len(regions) == 0 {
		return nil, nil, types.NewError(types.KindInternal, "no regions produced", nil)
	}

	var mustKeep func(types.Pt) bool
	if mask != nil {
		mustKeep = func(p types.Pt) bool {
			return edgeNear(mask, p)
		}
	}

	fillRegions := make([]types.FillRegion, len(regions)-1)
	var skipped atomic.Int64
	p.Pool.ParallelFor(len(regions)-1, func(i int) {
		r := regions[i+1]
		outer, ok := simplify.Fit(r.Outer, simplify.Options{
			Tolerance:          cfg.DPTolerance,
			CornerAngleDegrees: cfg.CornerAngleDeg,
			MustKeep:           mustKeep,
		})
		if !ok {
			skipped.Add(1)
			return
		}
		holes := make([]types.Path, 0, len(r.Holes))
		for _, h := range r.Holes {
			hp, hok := simplify.Fit(h, simplify.Options{
				Tolerance:          cfg.DPTolerance,
				CornerAngleDegrees: cfg.CornerAngleDeg,
			})
			if hok {
				holes = append(holes, hp)
			}
		}
		fillRegions[i] = types.FillRegion{
			PixelCount: r.PixelCount,
			Fill:       palette.Entries[r.PaletteIndex].RGB,
			Outer:      outer,
			Holes:      holes,
		}
	})

	if n := skipped.Load(); n > 0 {
		p.Log.Debug("dropped degenerate boundaries after simplification", "count", n)
	}

	background := palette.Entries[regions[0].PaletteIndex].RGB

	doc := types.SvgDocument{
		Width:      img.Width,
		Height:     img.Height,
		Background: background,
		Regions:    compactFillRegions(fillRegions),
	}
	if cfg.EdgeOverlay && mask != nil {
		doc.EdgeOverlay = &types.EdgeOverlay{Mask: mask, Opacity: cfg.EdgeOverlayOpacity}
	}

	if workerpool.Cancelled(ctx) {
		return nil, nil, types.NewError(types.KindCancelled, "cancelled before assembly", nil)
	}

	out := svgassemble.Assemble(doc)
	return out, warnings, nil
}

// compactFillRegions drops degenerate entries left as a zero-value by the
// parallel Fit loop above (their Outer.Segs is nil and PixelCount is 0,
// since the zero FillRegion is never assigned by a failed fit).
func compactFillRegions(in []types.FillRegion) []types.FillRegion {
	out := in[:0]
	for _, r := range in {
		if r.PixelCount == 0 && len(r.Outer.Segs) == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

func edgeVariant(v config.EdgeVariant) edgedetect.Variant {
	switch v {
	case config.EdgeCanny:
		return edgedetect.Canny
	case config.EdgeAiEnhanced:
		return edgedetect.AiEnhanced
	default:
		return edgedetect.Sobel
	}
}

func edgeNear(mask *types.EdgeMask, p types.Pt) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			x, y := p.X+dx, p.Y+dy
			if x < 0 || x >= mask.Width || y < 0 || y >= mask.Height {
				continue
			}
			if mask.At(x, y) != 0 {
				return true
			}
		}
	}
	return false
}

// runConcurrent runs fns concurrently and waits for all to finish, the
// fixed-fan-out sibling of workerpool.Pool.ParallelFor used for the
// Quantizer/Edge Detector pair that spec.md §2 requires to run in parallel.
func runConcurrent(fns ...func()) {
	done := make(chan struct{}, len(fns))
	for _, fn := range fns {
		go func(fn func()) {
			defer func() { done <- struct{}{} }()
			fn()
		}(fn)
	}
	for range fns {
		<-done
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kaguya154/vectorize/config"
	"github.com/kaguya154/vectorize/edgedetect"
	"github.com/kaguya154/vectorize/internal/workerpool"
	"github.com/kaguya154/vectorize/pipeline"
	"github.com/kaguya154/vectorize/preprocess"
	"github.com/kaguya154/vectorize/types"
)

type imageArgs struct {
	input          string
	output         string
	quality        string
	seed           uint64
	maxDim         int
	edgeOverlay    bool
	useLab         bool
	traceReference string
}

func runImage(ctx context.Context, log *slog.Logger, a imageArgs) error {
	data, err := os.ReadFile(a.input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	preset, err := config.ParsePreset(a.quality)
	if err != nil {
		return err
	}
	cfg := config.Default(preset)
	cfg.Seed = a.seed
	cfg.MaxDimension = a.maxDim
	cfg.EdgeOverlay = a.edgeOverlay
	cfg.UseLab = a.useLab

	p := pipeline.New(nil, nil, log)
	out, warnings, err := p.Vectorize(ctx, data, formatHint(a.input), cfg)
	if err != nil {
		return fmt.Errorf("vectorize: %w", err)
	}
	for _, w := range warnings {
		log.Warn("pipeline warning", "kind", w.Kind.String(), "message", w.Message)
	}

	if err := os.WriteFile(a.output, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Info("wrote svg", "path", a.output, "bytes", len(out))

	if a.traceReference != "" {
		if err := writeTraceReference(data, cfg, a.traceReference); err != nil {
			log.Warn("trace-reference failed", "error", err)
		}
	}
	return nil
}

// writeTraceReference re-runs preprocessing and edge detection on their own
// to obtain a mask, then potraces it as a comparison artifact.
func writeTraceReference(data []byte, cfg config.Config, outPath string) error {
	pool := workerpool.New(0)
	img, err := preprocess.Run(data, preprocess.Options{
		MaxDimension:  cfg.MaxDimension,
		BlurRadius:    cfg.BlurRadius,
		ContrastBoost: cfg.ContrastBoost,
	}, pool)
	if err != nil {
		return err
	}
	detector, err := edgedetect.NewDetector(edgedetect.Options{
		LowThreshold:  cfg.EdgeLowThreshold,
		HighThreshold: cfg.EdgeHighThreshold,
		Variant:       edgedetect.Sobel,
	})
	if err != nil {
		return err
	}
	mask, err := detector.Detect(img, pool)
	if err != nil {
		return err
	}
	svg, err := traceMaskWithGotrace(mask)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte(svg), 0o644)
}

func formatHint(path string) types.FormatHint {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") {
		return types.FormatJPEG
	}
	return types.FormatPNG
}

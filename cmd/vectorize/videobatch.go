package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/kaguya154/vectorize/config"
	"github.com/kaguya154/vectorize/pipeline"
	"github.com/kaguya154/vectorize/types"
)

// videoBatchArgs mirrors the teacher's generateBasToFile/
// generateBasToFileSerial flag set, generalized from "extract frames, split
// into color layers, emit .bas text" to "extract frames, vectorize each into
// an SVG, write size-capped chunks of SVG files."
type videoBatchArgs struct {
	videoPath  string
	fps        int
	maxWidth   int
	quality    string
	outputPath string
	maxSize    int
	parallel   int
	serial     bool
}

func runVideoBatch(ctx context.Context, log *slog.Logger, a videoBatchArgs) {
	log.Info("extracting frames", "video", a.videoPath, "fps", a.fps)
	frames, err := extractFrames(ctx, a.videoPath, a.fps, a.maxWidth)
	if err != nil {
		log.Error("extract frames failed", "error", err)
		os.Exit(1)
	}
	log.Info("extracted frames", "count", len(frames))

	preset, err := config.ParsePreset(a.quality)
	if err != nil {
		log.Error("bad quality preset", "error", err)
		os.Exit(1)
	}
	cfg := config.Default(preset)

	svgs := make([][]byte, len(frames))
	if a.serial {
		for i, f := range frames {
			svgs[i] = vectorizeFrame(ctx, log, f, cfg)
		}
	} else {
		sem := make(chan struct{}, max(1, a.parallel))
		var wg sync.WaitGroup
		for i, f := range frames {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, f image.Image) {
				defer wg.Done()
				defer func() { <-sem }()
				svgs[i] = vectorizeFrame(ctx, log, f, cfg)
			}(i, f)
		}
		wg.Wait()
	}

	if err := writeChunked(a.outputPath, svgs, a.maxSize); err != nil {
		log.Error("write batch output failed", "error", err)
		os.Exit(1)
	}
}

func vectorizeFrame(ctx context.Context, log *slog.Logger, frame image.Image, cfg config.Config) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		log.Error("encode frame failed", "error", err)
		return nil
	}
	p := pipeline.New(nil, nil, log)
	out, warnings, err := p.Vectorize(ctx, buf.Bytes(), types.FormatPNG, cfg)
	for _, w := range warnings {
		log.Warn("pipeline warning", "kind", w.Kind.String(), "message", w.Message)
	}
	if err != nil {
		log.Error("vectorize frame failed", "error", err)
		return nil
	}
	return out
}

// extractFrames pipes decoded video frames from ffmpeg, grounded on the
// teacher's video2color.ExtractFrames (same Input/Output/KwArgs shape,
// pipe:1 + image2pipe + PNG codec, decoded with the standard image.Decode
// loop until io.EOF).
func extractFrames(ctx context.Context, videoPath string, fps, maxWidth int) ([]image.Image, error) {
	if fps <= 0 {
		fps = 1
	}
	r, w := io.Pipe()

	cmd := ffmpeg.Input(videoPath).
		Output("pipe:1", ffmpeg.KwArgs{
			"format": "image2pipe",
			"vcodec": "png",
			"r":      strconv.Itoa(fps),
			"vf":     fmt.Sprintf("scale=%d:-1", maxWidth),
		}).
		WithOutput(w).
		WithErrorOutput(os.Stderr)
	cmd.Context = ctx

	runErr := make(chan error, 1)
	go func() {
		runErr <- cmd.Run()
		w.Close()
	}()

	var frames []image.Image
	reader := bufio.NewReader(r)
	for {
		img, _, err := image.Decode(reader)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", len(frames), err)
		}
		frames = append(frames, img)
	}
	if err := <-runErr; err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, errors.New("no frames extracted")
	}
	return frames, nil
}

// writeChunked writes each non-nil SVG to its own file, grouping output
// into numbered chunk directories capped at maxSize cumulative bytes — the
// same rollover shape as the teacher's generateBasToFile line-splitting
// loop, generalized from text lines to whole files.
func writeChunked(outputPath string, svgs [][]byte, maxSize int) error {
	chunkID := 0
	chunkSize := 0
	chunkDir := fmt.Sprintf("%s_chunk%d", outputPath, chunkID)
	if err := os.MkdirAll(chunkDir, 0o755); err != nil {
		return err
	}
	for i, data := range svgs {
		if data == nil {
			continue
		}
		if chunkSize > 0 && chunkSize+len(data) > maxSize {
			chunkID++
			chunkSize = 0
			chunkDir = fmt.Sprintf("%s_chunk%d", outputPath, chunkID)
			if err := os.MkdirAll(chunkDir, 0o755); err != nil {
				return err
			}
		}
		name := filepath.Join(chunkDir, fmt.Sprintf("frame_%05d.svg", i))
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return err
		}
		chunkSize += len(data)
	}
	return nil
}

// Command vectorize is a thin, flag-based CLI front end for the
// raster-to-SVG vectorization core, in the style of the original
// video2bas command: a single-image mode, a -video batch mode that
// extracts frames with ffmpeg-go and vectorizes each one, and a -describe
// debug mode that reparses an already-produced SVG.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
)

func main() {
	input := flag.String("input", "", "path to a PNG/JPEG image to vectorize")
	output := flag.String("output", "", "path to write the output SVG (defaults to <input>.svg)")
	quality := flag.String("quality", "Balanced", "quality preset: Fast, Balanced, High, Ultra")
	seed := flag.Uint64("seed", 0, "k-means++ seed")
	maxDim := flag.Int("max-dimension", 0, "downscale cap on the larger input side (0 = unset)")
	edgeOverlay := flag.Bool("edge-overlay", false, "stroke detected edges as a final overlay path")
	useLab := flag.Bool("use-lab", true, "cluster in CIE Lab (false uses linear RGB)")
	traceReference := flag.String("trace-reference", "", "also potrace the detected edge mask to this path, for comparison")
	verbose := flag.Bool("v", false, "enable debug logging to stderr")

	video := flag.String("video", "", "path to a video file; switches to batch frame-extraction mode")
	fps := flag.Int("fps", 10, "frames per second to sample in -video mode")
	videoMaxWidth := flag.Int("width", 96, "frame width in -video mode (frames are scaled to this width)")
	maxFileBudget := flag.Int("maxsize", 2*1024*1024, "per-chunk byte budget when writing batch SVGs")
	parallel := flag.Int("parallel", 4, "max goroutines for batch frame processing")
	serial := flag.Bool("serial", false, "process frames serially to minimize peak memory")

	describe := flag.String("describe", "", "reparse an already-produced SVG and print its view-box and path count")

	help := flag.Bool("help", false, "show usage")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if *describe != "" {
		runDescribe(*describe)
		return
	}

	if *video != "" {
		runVideoBatch(context.Background(), log, videoBatchArgs{
			videoPath:  *video,
			fps:        *fps,
			maxWidth:   *videoMaxWidth,
			quality:    *quality,
			outputPath: orDefault(*output, "output/frame"),
			maxSize:    *maxFileBudget,
			parallel:   *parallel,
			serial:     *serial,
		})
		return
	}

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := runImage(context.Background(), log, imageArgs{
		input:          *input,
		output:         orDefault(*output, *input+".svg"),
		quality:        *quality,
		seed:           *seed,
		maxDim:         *maxDim,
		edgeOverlay:    *edgeOverlay,
		useLab:         *useLab,
		traceReference: *traceReference,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "vectorize:", err)
		os.Exit(1)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

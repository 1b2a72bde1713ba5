package main

import (
	"bytes"
	"image"
	"image/color"

	"github.com/gotranspile/gotrace"

	"github.com/kaguya154/vectorize/types"
)

// traceMaskWithGotrace renders an EdgeMask through potrace as a reference
// comparison artifact for -trace-reference debug runs. It is grounded
// directly on the teacher's color2svg.traceGrayToSVG: the same
// BitmapFromGray -> Trace -> Render("svg", ...) call sequence, applied to an
// edge mask instead of a per-frame color layer.
func traceMaskWithGotrace(mask *types.EdgeMask) (string, error) {
	gray := image.NewGray(image.Rect(0, 0, mask.Width, mask.Height))
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			v := uint8(255)
			if mask.At(x, y) != 0 {
				v = 0
			}
			gray.SetGray(x, y, color.Gray{Y: v})
		}
	}

	bm := gotrace.BitmapFromGray(gray, nil)
	paths, err := gotrace.Trace(bm, nil)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := gotrace.Render("svg", nil, &buf, paths, mask.Width, mask.Height); err != nil {
		return "", err
	}
	return buf.String(), nil
}

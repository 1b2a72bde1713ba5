package main

import (
	"fmt"
	"os"

	"github.com/kaguya154/vectorize/svgassemble"
	"github.com/kaguya154/vectorize/types"
)

// runDescribe reparses an already-produced SVG with rustyoz/svg and prints
// its view-box and path count, grounded on the teacher's video2bas.go,
// which parses its generated SVG with the same library to recover the
// view-box dimensions.
func runDescribe(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "describe:", err)
		os.Exit(1)
	}
	w, h, paths, err := svgassemble.Describe(types.SvgBytes(data))
	if err != nil {
		fmt.Fprintln(os.Stderr, "describe:", err)
		os.Exit(1)
	}
	fmt.Printf("viewBox: 0 0 %d %d\npaths: %d\n", w, h, paths)
}

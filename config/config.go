// Package config holds the Vectorize entry point's configuration record and
// the Fast/Balanced/High/Ultra presets that resolve to concrete K,
// tolerance, and edge-variant values.
package config

import (
	"fmt"

	"github.com/kaguya154/vectorize/types"
)

// Preset is a named quality tier.
type Preset int

const (
	Fast Preset = iota
	Balanced
	High
	Ultra
)

func (p Preset) String() string {
	switch p {
	case Fast:
		return "Fast"
	case Balanced:
		return "Balanced"
	case High:
		return "High"
	case Ultra:
		return "Ultra"
	default:
		return "Unknown"
	}
}

// ParsePreset parses a case-sensitive preset name.
func ParsePreset(s string) (Preset, error) {
	switch s {
	case "Fast":
		return Fast, nil
	case "Balanced":
		return Balanced, nil
	case "High":
		return High, nil
	case "Ultra":
		return Ultra, nil
	default:
		return Fast, fmt.Errorf("unknown quality preset %q", s)
	}
}

// EdgeVariant selects the Edge Detector implementation.
type EdgeVariant int

const (
	EdgeNone EdgeVariant = iota
	EdgeSobel
	EdgeCanny
	EdgeAiEnhanced
)

// Config is the record passed to the pipeline's single entry point.
type Config struct {
	Quality      Preset
	UseLab       bool
	EdgeVariant  EdgeVariant
	MaxDimension int // 0 means unset
	Seed         uint64
	MaxIterations int
	MinRegionPixels int // 0 means "derive from image area"
	MaxRegions      int // 0 means default (100000)
	DPTolerance     float64
	CornerAngleDeg  float64
	BlurRadius      float64
	ContrastBoost   float64
	EdgeLowThreshold  uint8
	EdgeHighThreshold uint8
	EdgeOverlay       bool
	EdgeOverlayOpacity float64
	MaxDecodedBytes   int64 // 0 means unset
}

// presetValues is one row of spec.md §6's preset table.
type presetValues struct {
	K           int
	Tolerance   float64
	EdgeVariant EdgeVariant
}

var presets = map[Preset]presetValues{
	Fast:     {K: 16, Tolerance: 3.0, EdgeVariant: EdgeNone},
	Balanced: {K: 32, Tolerance: 2.0, EdgeVariant: EdgeNone},
	High:     {K: 64, Tolerance: 1.5, EdgeVariant: EdgeNone},
	Ultra:    {K: 128, Tolerance: 1.0, EdgeVariant: EdgeAiEnhanced},
}

// Default returns a Config for the given preset with every other field at
// its spec-mandated default.
func Default(preset Preset) Config {
	pv := presets[preset]
	return Config{
		Quality:            preset,
		UseLab:             true,
		EdgeVariant:        pv.EdgeVariant,
		Seed:               0,
		MaxIterations:      10,
		DPTolerance:        pv.Tolerance,
		CornerAngleDeg:     60,
		BlurRadius:         0.5,
		ContrastBoost:      1.0,
		EdgeLowThreshold:   30,
		EdgeHighThreshold:  90,
		MaxRegions:         100000,
		EdgeOverlayOpacity: 1.0,
	}
}

// K returns the palette size implied by cfg.Quality.
func (c Config) K() int { return presets[c.Quality].K }

// Validate checks the record before the pipeline starts, per spec.md §7:
// InvalidConfiguration is reported before any pipeline work is performed.
func (c Config) Validate() error {
	k := c.K()
	if k < 2 || k > 256 {
		return types.NewError(types.KindInvalidConfiguration,
			fmt.Sprintf("K=%d out of range [2,256]", k), nil)
	}
	if c.ContrastBoost != 0 && (c.ContrastBoost < 0.5 || c.ContrastBoost > 2.0) {
		return types.NewError(types.KindInvalidConfiguration,
			fmt.Sprintf("contrast_boost=%v out of range [0.5,2.0]", c.ContrastBoost), nil)
	}
	if c.EdgeLowThreshold > c.EdgeHighThreshold {
		return types.NewError(types.KindInvalidConfiguration,
			fmt.Sprintf("low_threshold=%d > high_threshold=%d", c.EdgeLowThreshold, c.EdgeHighThreshold), nil)
	}
	if c.MaxIterations < 0 {
		return types.NewError(types.KindInvalidConfiguration, "max_iterations must be >= 0", nil)
	}
	return nil
}

package config

import "testing"

func TestDefaultPresetsMatchTable(t *testing.T) {
	cases := []struct {
		preset    Preset
		k         int
		tolerance float64
		variant   EdgeVariant
	}{
		{Fast, 16, 3.0, EdgeNone},
		{Balanced, 32, 2.0, EdgeNone},
		{High, 64, 1.5, EdgeNone},
		{Ultra, 128, 1.0, EdgeAiEnhanced},
	}
	for _, c := range cases {
		cfg := Default(c.preset)
		if cfg.K() != c.k {
			t.Errorf("%v: K() = %d, want %d", c.preset, cfg.K(), c.k)
		}
		if cfg.DPTolerance != c.tolerance {
			t.Errorf("%v: DPTolerance = %v, want %v", c.preset, cfg.DPTolerance, c.tolerance)
		}
		if cfg.EdgeVariant != c.variant {
			t.Errorf("%v: EdgeVariant = %v, want %v", c.preset, cfg.EdgeVariant, c.variant)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("%v: Validate() = %v, want nil", c.preset, err)
		}
	}
}

func TestParsePreset(t *testing.T) {
	if p, err := ParsePreset("High"); err != nil || p != High {
		t.Fatalf("ParsePreset(High) = (%v, %v), want (High, nil)", p, err)
	}
	if _, err := ParsePreset("extreme"); err == nil {
		t.Fatalf("ParsePreset(extreme) = nil error, want error")
	}
}

func TestPresetString(t *testing.T) {
	if Balanced.String() != "Balanced" {
		t.Fatalf("Balanced.String() = %q, want %q", Balanced.String(), "Balanced")
	}
	if Preset(99).String() != "Unknown" {
		t.Fatalf("Preset(99).String() = %q, want %q", Preset(99).String(), "Unknown")
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cfg := Default(Balanced)
	cfg.EdgeLowThreshold = 200
	cfg.EdgeHighThreshold = 50
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for low > high threshold")
	}
}

func TestValidateRejectsBadContrastBoost(t *testing.T) {
	cfg := Default(Balanced)
	cfg.ContrastBoost = 5.0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for out-of-range contrast boost")
	}
}

func TestValidateRejectsNegativeIterations(t *testing.T) {
	cfg := Default(Balanced)
	cfg.MaxIterations = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for negative max iterations")
	}
}

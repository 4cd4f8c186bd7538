// Package camera stores per-camera grain settings and resolves them for rendering.
package camera

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/grainmatch/internal/iso"
)

// ErrInvalidSettings is returned by Validate.
var ErrInvalidSettings = errors.New("invalid camera settings")

// Bounds for the user-tunable multipliers.
const (
	MinStrength          = 0.0
	MaxStrength          = 2.0
	MinShadowBoost       = 1.0
	MaxShadowBoost       = 2.0
	MinHighlightSuppress = 0.1
	MaxHighlightSuppress = 1.0
)

// Settings is the grain configuration attached to one camera.
type Settings struct {
	ISO                string  `json:"iso" mapstructure:"iso"`
	StrengthMultiplier float64 `json:"strength_multiplier" mapstructure:"strength_multiplier"`
	ShadowBoost        float64 `json:"shadow_boost" mapstructure:"shadow_boost"`
	HighlightSuppress  float64 `json:"highlight_suppress" mapstructure:"highlight_suppress"`
}

// DefaultSettings returns the settings a new camera starts with.
func DefaultSettings() Settings {
	return Settings{
		ISO:                iso.DefaultIdentifier,
		StrengthMultiplier: 1.0,
		ShadowBoost:        1.2,
		HighlightSuppress:  0.6,
	}
}

// Validate checks that ISO is a known preset and every multiplier is in range.
// Unlike iso.Lookup this is strict: settings are user input.
func (s Settings) Validate() error {
	if !iso.Known(s.ISO) {
		return fmt.Errorf("%w: unknown ISO %q", ErrInvalidSettings, s.ISO)
	}
	if !inRange(s.StrengthMultiplier, MinStrength, MaxStrength) {
		return fmt.Errorf("%w: strength multiplier %g outside [%g,%g]",
			ErrInvalidSettings, s.StrengthMultiplier, MinStrength, MaxStrength)
	}
	if !inRange(s.ShadowBoost, MinShadowBoost, MaxShadowBoost) {
		return fmt.Errorf("%w: shadow boost %g outside [%g,%g]",
			ErrInvalidSettings, s.ShadowBoost, MinShadowBoost, MaxShadowBoost)
	}
	if !inRange(s.HighlightSuppress, MinHighlightSuppress, MaxHighlightSuppress) {
		return fmt.Errorf("%w: highlight suppress %g outside [%g,%g]",
			ErrInvalidSettings, s.HighlightSuppress, MinHighlightSuppress, MaxHighlightSuppress)
	}
	return nil
}

// inRange reports whether v lies in [lo,hi]. NaN is never in range.
func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// Package iso holds the curated FX30 grain parameters per ISO preset.
package iso

// DefaultIdentifier is the preset used when a lookup misses.
const DefaultIdentifier = "800"

// Parameters shape the grain for one ISO preset.
// ColorInfluence and LumaInfluence scale independent noise draws; they are
// not a partition and do not sum to one.
type Parameters struct {
	Intensity      float64 `json:"intensity"`
	Size           float64 `json:"size"`
	Roughness      float64 `json:"roughness"`
	ColorInfluence float64 `json:"color_influence"`
	LumaInfluence  float64 `json:"luma_influence"`
	ChromaBias     float64 `json:"chroma_bias"`
}

// Preset is a table entry with its display metadata.
type Preset struct {
	Identifier  string     `json:"iso"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Params      Parameters `json:"params"`
}

// Ordered by ascending sensitivity.
var presetOrder = []string{
	"80", "100", "200", "400", "800", "1600", "3200",
	"6400", "12800", "25600", "32000", "64000", "102400",
}

var table = map[string]Parameters{
	// Base ISO, almost clean.
	"80":  {Intensity: 0.08, Size: 0.32, Roughness: 0.60, ColorInfluence: 0.03, LumaInfluence: 0.95, ChromaBias: 0.02},
	"100": {Intensity: 0.10, Size: 0.35, Roughness: 0.62, ColorInfluence: 0.04, LumaInfluence: 0.94, ChromaBias: 0.03},

	// Low ISO, slight grain in the shadows.
	"200": {Intensity: 0.15, Size: 0.40, Roughness: 0.65, ColorInfluence: 0.05, LumaInfluence: 0.92, ChromaBias: 0.04},
	"400": {Intensity: 0.22, Size: 0.45, Roughness: 0.68, ColorInfluence: 0.07, LumaInfluence: 0.90, ChromaBias: 0.06},

	// Medium ISO.
	"800":  {Intensity: 0.35, Size: 0.52, Roughness: 0.72, ColorInfluence: 0.09, LumaInfluence: 0.87, ChromaBias: 0.08},
	"1600": {Intensity: 0.48, Size: 0.58, Roughness: 0.76, ColorInfluence: 0.12, LumaInfluence: 0.83, ChromaBias: 0.11},

	// High ISO, colour noise starts to show.
	"3200": {Intensity: 0.65, Size: 0.64, Roughness: 0.80, ColorInfluence: 0.16, LumaInfluence: 0.78, ChromaBias: 0.15},
	"6400": {Intensity: 0.85, Size: 0.70, Roughness: 0.84, ColorInfluence: 0.21, LumaInfluence: 0.72, ChromaBias: 0.20},

	"12800": {Intensity: 1.15, Size: 0.78, Roughness: 0.88, ColorInfluence: 0.28, LumaInfluence: 0.65, ChromaBias: 0.26},
	"25600": {Intensity: 1.40, Size: 0.84, Roughness: 0.92, ColorInfluence: 0.36, LumaInfluence: 0.58, ChromaBias: 0.32},

	// Extended range, heavy noise.
	"32000":  {Intensity: 1.65, Size: 0.88, Roughness: 0.94, ColorInfluence: 0.42, LumaInfluence: 0.52, ChromaBias: 0.38},
	"64000":  {Intensity: 1.95, Size: 0.92, Roughness: 0.96, ColorInfluence: 0.48, LumaInfluence: 0.45, ChromaBias: 0.46},
	"102400": {Intensity: 2.30, Size: 0.96, Roughness: 0.98, ColorInfluence: 0.55, LumaInfluence: 0.38, ChromaBias: 0.52},
}

// Lookup returns the parameters for id, or the DefaultIdentifier entry when
// id is not a known preset. It never fails.
func Lookup(id string) Parameters {
	if p, ok := table[id]; ok {
		return p
	}
	return table[DefaultIdentifier]
}

// Known reports whether id is one of the fixed presets.
func Known(id string) bool {
	_, ok := table[id]
	return ok
}

// Identifiers returns the preset identifiers in ascending ISO order.
func Identifiers() []string {
	out := make([]string, len(presetOrder))
	copy(out, presetOrder)
	return out
}

// Presets returns every table entry in ascending ISO order.
func Presets() []Preset {
	out := make([]Preset, 0, len(presetOrder))
	for _, id := range presetOrder {
		out = append(out, Preset{
			Identifier:  id,
			Label:       "ISO " + id,
			Description: "Sony FX30 ISO " + id + " grain structure",
			Params:      table[id],
		})
	}
	return out
}

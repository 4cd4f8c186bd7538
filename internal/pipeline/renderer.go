// Package pipeline renders grain onto single frames: load, generate, composite, write.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/grainmatch/internal/camera"
	"github.com/MeKo-Tech/grainmatch/internal/composite"
	"github.com/MeKo-Tech/grainmatch/internal/grain"
)

// Pass names an output image of a render.
type Pass string

const (
	PassCombined Pass = "combined"
	PassGrain    Pass = "grain"
	PassColor    Pass = "color"
	PassLuma     Pass = "luma"
)

// AllPasses lists every pass in output order.
var AllPasses = []Pass{PassCombined, PassGrain, PassColor, PassLuma}

// ParsePasses parses a comma separated pass list. An empty string selects all passes.
func ParsePasses(s string) ([]Pass, error) {
	if strings.TrimSpace(s) == "" {
		return AllPasses, nil
	}
	var out []Pass
	seen := make(map[Pass]bool)
	for _, part := range strings.Split(s, ",") {
		p := Pass(strings.ToLower(strings.TrimSpace(part)))
		switch p {
		case PassCombined, PassGrain, PassColor, PassLuma:
		default:
			return nil, fmt.Errorf("unknown pass %q (valid: combined, grain, color, luma)", part)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}

// RendererConfig configures a Renderer.
type RendererConfig struct {
	OutputDir string
	// Width and Height size the mid-grey canvas used when a frame has no input.
	Width    int
	Height   int
	Seed     int64
	Settings camera.Settings
	Passes   []Pass
	Force    bool
}

// Frame is one unit of work.
type Frame struct {
	Index int
	// Input is an optional PNG to add grain to.
	Input string
	// Shadow is an optional grayscale PNG used as shadow mask.
	Shadow string
	// Name overrides the output file prefix.
	Name string
}

// Output reports what a render produced.
type Output struct {
	Frame   Frame
	Name    string
	Seed    int64
	Paths   map[Pass]string
	Skipped bool
}

// Renderer turns frames into grain passes on disk.
type Renderer struct {
	logger *slog.Logger
	cfg    RendererConfig
}

// NewRenderer validates cfg and prepares a renderer.
func NewRenderer(cfg RendererConfig, logger *slog.Logger) (*Renderer, error) {
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output dir must not be empty")
	}
	if cfg.Width < 0 || cfg.Height < 0 {
		return nil, fmt.Errorf("canvas size must not be negative: %dx%d", cfg.Width, cfg.Height)
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Passes) == 0 {
		cfg.Passes = AllPasses
	}
	return &Renderer{cfg: cfg, logger: logger}, nil
}

// FrameSeed is the grain seed for frame index i: each frame gets its own
// grain, and re-rendering a frame reproduces it exactly.
func (r *Renderer) FrameSeed(i int) int64 {
	return r.cfg.Seed + int64(i)
}

// Render generates grain for frame and writes the configured passes.
func (r *Renderer) Render(ctx context.Context, frame Frame) (Output, error) {
	name := frameName(frame)
	out := Output{
		Frame: frame,
		Name:  name,
		Seed:  r.FrameSeed(frame.Index),
		Paths: make(map[Pass]string, len(r.cfg.Passes)),
	}
	for _, p := range r.cfg.Passes {
		out.Paths[p] = filepath.Join(r.cfg.OutputDir, fmt.Sprintf("%s_%s.png", name, p))
	}

	if !r.cfg.Force && allExist(out.Paths) {
		r.log().Info("Frame already rendered; skipping", "frame", name)
		out.Skipped = true
		return out, nil
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}

	img, err := r.loadInput(frame)
	if err != nil {
		return out, err
	}

	var shadow *image.Gray
	if frame.Shadow != "" {
		shadow, err = readGray(frame.Shadow)
		if err != nil {
			return out, fmt.Errorf("failed to read shadow mask: %w", err)
		}
	}

	b := img.Bounds()
	r.log().Debug("Generating grain", "frame", name, "iso", r.cfg.Settings.ISO,
		"seed", out.Seed, "width", b.Dx(), "height", b.Dy())

	field, err := grain.Generate(r.cfg.Settings.ISO, out.Seed, b.Dx(), b.Dy())
	if err != nil {
		return out, fmt.Errorf("failed to generate grain: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}

	passes, err := composite.Apply(img, shadow, field, composite.OptionsFromSettings(r.cfg.Settings, out.Seed))
	if err != nil {
		return out, fmt.Errorf("failed to composite grain: %w", err)
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return out, fmt.Errorf("failed to create output dir: %w", err)
	}

	for _, p := range r.cfg.Passes {
		var pimg image.Image
		switch p {
		case PassCombined:
			pimg = passes.Combined
		case PassGrain:
			pimg = passes.GrainOnly
		case PassColor:
			pimg = passes.ColorNoise
		case PassLuma:
			pimg = passes.LumaNoise
		}
		if err := writePNG(out.Paths[p], pimg); err != nil {
			return out, err
		}
	}

	r.log().Info("Frame rendered", "frame", name, "passes", len(r.cfg.Passes))
	return out, nil
}

func (r *Renderer) loadInput(frame Frame) (image.Image, error) {
	if frame.Input != "" {
		img, err := readPNG(frame.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to read input %s: %w", frame.Input, err)
		}
		return img, nil
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, r.cfg.Width, r.cfg.Height))
	grey := color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	for y := 0; y < r.cfg.Height; y++ {
		for x := 0; x < r.cfg.Width; x++ {
			canvas.SetNRGBA(x, y, grey)
		}
	}
	return canvas, nil
}

func frameName(frame Frame) string {
	if frame.Name != "" {
		return frame.Name
	}
	if frame.Input != "" {
		base := filepath.Base(frame.Input)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return fmt.Sprintf("frame_%05d", frame.Index)
}

func allExist(paths map[Pass]string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return len(paths) > 0
}

func readPNG(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return png.Decode(file)
}

func readGray(path string) (*image.Gray, error) {
	img, err := readPNG(path)
	if err != nil {
		return nil, err
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	b := img.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, img.At(x, y))
		}
	}
	return g, nil
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

func (r *Renderer) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

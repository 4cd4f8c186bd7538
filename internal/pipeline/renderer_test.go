package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/grainmatch/internal/camera"
)

func newTestRenderer(t *testing.T, cfg RendererConfig) *Renderer {
	t.Helper()
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	}
	if cfg.Settings.ISO == "" {
		cfg.Settings = camera.DefaultSettings()
	}
	r, err := NewRenderer(cfg, nil)
	require.NoError(t, err)
	return r
}

func writeTestPNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func decode(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := readPNG(path)
	require.NoError(t, err)
	return img
}

func TestParsePasses(t *testing.T) {
	passes, err := ParsePasses("")
	require.NoError(t, err)
	assert.Equal(t, AllPasses, passes)

	passes, err = ParsePasses(" Luma, combined ,luma")
	require.NoError(t, err)
	assert.Equal(t, []Pass{PassLuma, PassCombined}, passes)

	_, err = ParsePasses("luma,depth")
	assert.Error(t, err)
}

func TestNewRenderer_Validation(t *testing.T) {
	_, err := NewRenderer(RendererConfig{Settings: camera.DefaultSettings()}, nil)
	assert.Error(t, err, "missing output dir")

	_, err = NewRenderer(RendererConfig{OutputDir: t.TempDir(), Width: -1, Settings: camera.DefaultSettings()}, nil)
	assert.Error(t, err)

	bad := camera.DefaultSettings()
	bad.ShadowBoost = 5
	_, err = NewRenderer(RendererConfig{OutputDir: t.TempDir(), Settings: bad}, nil)
	assert.ErrorIs(t, err, camera.ErrInvalidSettings)
}

func TestRender_CanvasWritesAllPasses(t *testing.T) {
	r := newTestRenderer(t, RendererConfig{Width: 32, Height: 16, Seed: 7})

	out, err := r.Render(context.Background(), Frame{Index: 3})
	require.NoError(t, err)
	assert.Equal(t, "frame_00003", out.Name)
	assert.Equal(t, int64(10), out.Seed)
	require.Len(t, out.Paths, 4)

	for _, p := range AllPasses {
		img := decode(t, out.Paths[p])
		assert.Equal(t, 32, img.Bounds().Dx(), "pass %s", p)
		assert.Equal(t, 16, img.Bounds().Dy(), "pass %s", p)
	}
}

func TestRender_InputFrame(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "shot_0042.png")
	src := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}
	writeTestPNG(t, input, src)

	shadow := filepath.Join(dir, "shadow.png")
	writeTestPNG(t, shadow, image.NewGray(image.Rect(0, 0, 5, 5)))

	r := newTestRenderer(t, RendererConfig{Passes: []Pass{PassCombined}})
	out, err := r.Render(context.Background(), Frame{Index: 0, Input: input, Shadow: shadow})
	require.NoError(t, err)

	assert.Equal(t, "shot_0042", out.Name)
	require.Len(t, out.Paths, 1)
	img := decode(t, out.Paths[PassCombined])
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())
}

func TestRender_Deterministic(t *testing.T) {
	cfg := RendererConfig{Width: 16, Height: 16, Seed: 5, Passes: []Pass{PassLuma}, Force: true}
	r := newTestRenderer(t, cfg)

	a, err := r.Render(context.Background(), Frame{Index: 1})
	require.NoError(t, err)
	first, err := os.ReadFile(a.Paths[PassLuma])
	require.NoError(t, err)

	b, err := r.Render(context.Background(), Frame{Index: 1})
	require.NoError(t, err)
	second, err := os.ReadFile(b.Paths[PassLuma])
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRender_FramesDiffer(t *testing.T) {
	r := newTestRenderer(t, RendererConfig{Width: 16, Height: 16, Passes: []Pass{PassLuma}})

	a, err := r.Render(context.Background(), Frame{Index: 1})
	require.NoError(t, err)
	b, err := r.Render(context.Background(), Frame{Index: 2})
	require.NoError(t, err)

	ga := decode(t, a.Paths[PassLuma]).(*image.Gray)
	gb := decode(t, b.Paths[PassLuma]).(*image.Gray)
	assert.NotEqual(t, ga.Pix, gb.Pix)
}

func TestRender_SkipsExisting(t *testing.T) {
	r := newTestRenderer(t, RendererConfig{Width: 8, Height: 8, Passes: []Pass{PassGrain}})

	out, err := r.Render(context.Background(), Frame{Name: "plate"})
	require.NoError(t, err)
	assert.False(t, out.Skipped)

	out, err = r.Render(context.Background(), Frame{Name: "plate"})
	require.NoError(t, err)
	assert.True(t, out.Skipped)
}

func TestRender_MissingInput(t *testing.T) {
	r := newTestRenderer(t, RendererConfig{})
	_, err := r.Render(context.Background(), Frame{Input: filepath.Join(t.TempDir(), "nope.png")})
	assert.Error(t, err)
}

func TestRender_CancelledContext(t *testing.T) {
	r := newTestRenderer(t, RendererConfig{Width: 8, Height: 8})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, Frame{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadGray_ConvertsColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mask.png")
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{A: 255})
	writeTestPNG(t, path, img)

	g, err := readGray(path)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), g.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), g.GrayAt(1, 0).Y)
}

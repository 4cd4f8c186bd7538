package cmd

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/grainmatch/internal/camera"
	"github.com/MeKo-Tech/grainmatch/internal/pipeline"
	"github.com/MeKo-Tech/grainmatch/internal/server"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFrame(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 2, 2))))
}

func TestFlagKey(t *testing.T) {
	assert.Equal(t, "shadow_boost", flagKey("shadow-boost"))
	assert.Equal(t, "iso", flagKey("iso"))
}

func TestCollectFrames_Canvas(t *testing.T) {
	frames, err := collectFrames("", "", 3)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, i, f.Index)
		assert.Empty(t, f.Input)
	}

	_, err = collectFrames("", "", -1)
	assert.Error(t, err)
}

func TestCollectFrames_Directory(t *testing.T) {
	in := t.TempDir()
	shadows := t.TempDir()
	writeFrame(t, filepath.Join(in, "b.png"))
	writeFrame(t, filepath.Join(in, "a.PNG"))
	writeFrame(t, filepath.Join(shadows, "b.png"))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(in, "sub.png"), 0o755))

	frames, err := collectFrames(in, shadows, 0)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, pipeline.Frame{Index: 0, Input: filepath.Join(in, "a.PNG")}, frames[0])
	assert.Equal(t, pipeline.Frame{
		Index:  1,
		Input:  filepath.Join(in, "b.png"),
		Shadow: filepath.Join(shadows, "b.png"),
	}, frames[1])

	_, err = collectFrames(filepath.Join(in, "missing"), "", 0)
	assert.Error(t, err)
}

func TestWritePresets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePresets(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 14)
	assert.True(t, strings.HasPrefix(lines[0], "ISO"))
	assert.True(t, strings.HasPrefix(lines[1], "80 "))
	assert.Contains(t, lines[13], "102400")
}

func TestWriteCameras(t *testing.T) {
	var buf bytes.Buffer
	err := writeCameras(&buf, []camera.Entry{{Name: "a-cam", Settings: camera.DefaultSettings()}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "a-cam")
	assert.Contains(t, buf.String(), "800")
}

func TestLoadSettings_CameraThenOverrides(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cameras.db")
	store, err := camera.Open(dbPath)
	require.NoError(t, err)
	stored := camera.Settings{ISO: "6400", StrengthMultiplier: 1.5, ShadowBoost: 1.8, HighlightSuppress: 0.4}
	require.NoError(t, store.Put(context.Background(), "b-cam", stored))
	require.NoError(t, store.Close())

	prev := viper.GetString("camera-db")
	viper.Set("camera-db", dbPath)
	t.Cleanup(func() { viper.Set("camera-db", prev) })

	viper.Set("loadtest.camera", "b-cam")
	got, err := loadSettings(context.Background(), "loadtest")
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	viper.Set("loadtest.iso", "200")
	got, err = loadSettings(context.Background(), "loadtest")
	require.NoError(t, err)
	assert.Equal(t, "200", got.ISO)
	assert.Equal(t, 1.5, got.StrengthMultiplier)

	viper.Set("loadtest.camera", "missing")
	_, err = loadSettings(context.Background(), "loadtest")
	assert.ErrorIs(t, err, camera.ErrNotFound)
}

func TestLoadSettings_UnknownISOFallsBack(t *testing.T) {
	viper.Set("unknowniso.iso", "999")
	viper.Set("unknowniso.strength", 1.5)

	got, err := loadSettings(context.Background(), "unknowniso")
	require.NoError(t, err)
	assert.Equal(t, "800", got.ISO)
	assert.Equal(t, 1.5, got.StrengthMultiplier)

	viper.Set("unknowniso.iso", "3200")
	got, err = loadSettings(context.Background(), "unknowniso")
	require.NoError(t, err)
	assert.Equal(t, "3200", got.ISO)
}

func TestLoadSettings_Invalid(t *testing.T) {
	viper.Set("invalidtest.strength", 5.0)
	_, err := loadSettings(context.Background(), "invalidtest")
	assert.ErrorIs(t, err, camera.ErrInvalidSettings)
}

func TestRendererConfig_Seed(t *testing.T) {
	viper.Set("seedtest.seed", "42")
	viper.Set("seedtest.passes", "luma,grain")
	cfg, err := rendererConfig(context.Background(), "seedtest")
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, []pipeline.Pass{pipeline.PassLuma, pipeline.PassGrain}, cfg.Passes)

	viper.Set("seedtest.seed", "forty-two")
	_, err = rendererConfig(context.Background(), "seedtest")
	assert.Error(t, err)
}

func TestServeMux(t *testing.T) {
	srv := httptest.NewServer(newServeMux(server.NewGrainServer(server.GrainServerConfig{}, nil)))
	defer srv.Close()

	for _, path := range []string{"/healthz", "/presets", "/grain.png?width=8&height=8"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

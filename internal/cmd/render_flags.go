package cmd

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/grainmatch/internal/camera"
	"github.com/MeKo-Tech/grainmatch/internal/grain"
	"github.com/MeKo-Tech/grainmatch/internal/iso"
	"github.com/MeKo-Tech/grainmatch/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// addRenderFlags registers the flags shared by generate and batch under the
// viper section prefix.
func addRenderFlags(cmd *cobra.Command, prefix string) {
	defaults := camera.DefaultSettings()

	cmd.Flags().String("iso", defaults.ISO, "ISO preset (unknown values fall back to 800)")
	cmd.Flags().String("camera", "", "Named camera from --camera-db; explicit flags override it")
	cmd.Flags().Float64("strength", defaults.StrengthMultiplier, "Grain strength multiplier (0..2)")
	cmd.Flags().Float64("shadow-boost", defaults.ShadowBoost, "Grain multiplier in deep shadows (1..2)")
	cmd.Flags().Float64("highlight-suppress", defaults.HighlightSuppress, "Grain multiplier in highlights (0.1..1)")
	cmd.Flags().String("seed", "1", "Deterministic seed (any number)")
	cmd.Flags().Int("width", 1920, "Frame width when no input image is given")
	cmd.Flags().Int("height", 1080, "Frame height when no input image is given")
	cmd.Flags().String("passes", "combined", "Comma-separated passes to write (combined, grain, color, luma; empty writes all)")
	cmd.Flags().Bool("force", false, "Overwrite frames that already exist")

	for _, name := range []string{
		"iso", "camera", "strength", "shadow-boost", "highlight-suppress",
		"seed", "width", "height", "passes", "force",
	} {
		mustBind(cmd, prefix+"."+flagKey(name), name)
	}
}

// flagKey maps a dashed flag name to its snake_case config key.
func flagKey(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c == '-' {
			b[i] = '_'
		}
	}
	return string(b)
}

// loadSettings resolves camera settings for a command section: defaults,
// then the named camera, then any explicitly set flag or config value.
// An unknown ISO given by flag or config falls back to the default preset;
// a named camera that does not exist is an error.
func loadSettings(ctx context.Context, prefix string) (camera.Settings, error) {
	settings := camera.DefaultSettings()

	if name := viper.GetString(prefix + ".camera"); name != "" {
		store, err := camera.Open(viper.GetString("camera-db"))
		if err != nil {
			return settings, err
		}
		defer store.Close()

		if settings, err = store.Get(ctx, name); err != nil {
			return settings, fmt.Errorf("camera %q: %w", name, err)
		}
	}

	if viper.IsSet(prefix + ".iso") {
		settings.ISO = viper.GetString(prefix + ".iso")
		if !iso.Known(settings.ISO) {
			cmdLog().Warn("Unknown ISO; falling back to default preset",
				"iso", settings.ISO, "fallback", iso.DefaultIdentifier)
			settings.ISO = iso.DefaultIdentifier
		}
	}
	if viper.IsSet(prefix + ".strength") {
		settings.StrengthMultiplier = viper.GetFloat64(prefix + ".strength")
	}
	if viper.IsSet(prefix + ".shadow_boost") {
		settings.ShadowBoost = viper.GetFloat64(prefix + ".shadow_boost")
	}
	if viper.IsSet(prefix + ".highlight_suppress") {
		settings.HighlightSuppress = viper.GetFloat64(prefix + ".highlight_suppress")
	}

	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// rendererConfig builds the pipeline configuration for a command section.
func rendererConfig(ctx context.Context, prefix string) (pipeline.RendererConfig, error) {
	settings, err := loadSettings(ctx, prefix)
	if err != nil {
		return pipeline.RendererConfig{}, err
	}

	seed, err := grain.NormalizeSeed(viper.Get(prefix + ".seed"))
	if err != nil {
		return pipeline.RendererConfig{}, err
	}

	passes, err := pipeline.ParsePasses(viper.GetString(prefix + ".passes"))
	if err != nil {
		return pipeline.RendererConfig{}, err
	}

	return pipeline.RendererConfig{
		OutputDir: viper.GetString("output-dir"),
		Width:     viper.GetInt(prefix + ".width"),
		Height:    viper.GetInt(prefix + ".height"),
		Seed:      seed,
		Settings:  settings,
		Passes:    passes,
		Force:     viper.GetBool(prefix + ".force"),
	}, nil
}

// Package composite blends generated grain into an image and produces the
// separated passes a compositing graph consumes.
package composite

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/grainmatch/internal/camera"
	"github.com/MeKo-Tech/grainmatch/internal/grain"
	"github.com/MeKo-Tech/grainmatch/internal/mask"
)

const (
	// Blur sigma in pixels at size 1.0.
	maxGrainSigma = 1.5
	// Perlin clumping strength at roughness 1.0.
	clumpStrength = 0.25
	// DefaultShadowSoftness is the shadow mask blur sigma in pixels.
	DefaultShadowSoftness = 2.0
)

// Options controls how grain is applied.
type Options struct {
	Strength          float64
	ShadowBoost       float64
	HighlightSuppress float64
	// ShadowSoftness blurs the shadow mask so hard luminance edges do not
	// step the grain strength; 0 disables it.
	ShadowSoftness float32
	// Seed drives the clumping noise; reuse the grain seed for stable output.
	Seed int64
}

// OptionsFromSettings builds Options from stored camera settings.
func OptionsFromSettings(s camera.Settings, seed int64) Options {
	return Options{
		Strength:          s.StrengthMultiplier,
		ShadowBoost:       s.ShadowBoost,
		HighlightSuppress: s.HighlightSuppress,
		ShadowSoftness:    DefaultShadowSoftness,
		Seed:              seed,
	}
}

// Passes are the outputs of one Apply call.
type Passes struct {
	// Combined is the input image with grain added.
	Combined *image.NRGBA
	// GrainOnly is luma plus colour grain over mid-grey.
	GrainOnly *image.NRGBA
	// ColorNoise is the colour grain alone over mid-grey.
	ColorNoise *image.NRGBA
	// LumaNoise is the luma grain alone over mid-grey.
	LumaNoise *image.Gray
}

// Apply composites field onto img. shadow may be nil, in which case it is
// derived from img; a shadow mask of a different size is resampled. The mask
// is then softened by opts.ShadowSoftness.
// The field must match the image dimensions.
func Apply(img image.Image, shadow *image.Gray, field *grain.NoiseField, opts Options) (*Passes, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	if field == nil {
		return nil, errors.New("noise field is nil")
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if field.Width() != w || field.Height() != h {
		return nil, fmt.Errorf("noise field %dx%d does not match image %dx%d",
			field.Width(), field.Height(), w, h)
	}

	shadow = prepareShadow(img, shadow, opts.ShadowSoftness)

	luma, red, green, blue := shapeField(field, opts.Seed)

	rect := image.Rect(0, 0, w, h)
	passes := &Passes{
		Combined:   image.NewNRGBA(rect),
		GrainOnly:  image.NewNRGBA(rect),
		ColorNoise: image.NewNRGBA(rect),
		LumaNoise:  image.NewGray(rect),
	}

	sb := shadow.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := float64(shadow.GrayAt(sb.Min.X+x, sb.Min.Y+y).Y) / 255.0
			weight := modulation(s, opts)

			l := weight * luma[y][x]
			r := weight * red[y][x]
			g := weight * green[y][x]
			b := weight * blue[y][x]

			src := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			passes.Combined.SetNRGBA(x, y, color.NRGBA{
				R: toByte(float64(src.R)/255.0 + l + r),
				G: toByte(float64(src.G)/255.0 + l + g),
				B: toByte(float64(src.B)/255.0 + l + b),
				A: src.A,
			})
			passes.GrainOnly.SetNRGBA(x, y, color.NRGBA{
				R: toByte(0.5 + l + r),
				G: toByte(0.5 + l + g),
				B: toByte(0.5 + l + b),
				A: 255,
			})
			passes.ColorNoise.SetNRGBA(x, y, color.NRGBA{
				R: toByte(0.5 + r),
				G: toByte(0.5 + g),
				B: toByte(0.5 + b),
				A: 255,
			})
			passes.LumaNoise.SetGray(x, y, color.Gray{Y: toByte(0.5 + l)})
		}
	}

	return passes, nil
}

// prepareShadow returns a shadow mask matching img's size, derived from img
// when shadow is nil, blurred by softness.
func prepareShadow(img image.Image, shadow *image.Gray, softness float32) *image.Gray {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if shadow == nil {
		shadow = mask.ShadowMask(img)
	} else if shadow.Bounds().Dx() != w || shadow.Bounds().Dy() != h {
		shadow = mask.Resize(shadow, w, h)
	}
	if softness <= 0 || w == 0 || h == 0 {
		return shadow
	}
	return mask.GaussianBlur(shadow, softness)
}

// modulation maps a shadow value in [0,1] to the grain multiplier: highlights
// get HighlightSuppress, deep shadows get ShadowBoost, scaled by Strength.
func modulation(shadow float64, opts Options) float64 {
	return lerp(opts.HighlightSuppress, opts.ShadowBoost, shadow) * opts.Strength
}

// shapeField applies size, roughness and chroma bias to copies of the grids.
func shapeField(field *grain.NoiseField, seed int64) (luma, red, green, blue [][]float64) {
	sigma := float32(field.Size * maxGrainSigma)
	rough := field.Roughness

	luma = roughen(field.Luma, sigma, rough)
	red = roughen(field.Red, sigma, rough)
	green = roughen(field.Green, sigma, rough)
	blue = roughen(field.Blue, sigma, rough)

	w, h := field.Width(), field.Height()
	if w > 0 && h > 0 {
		clump := mask.ClumpNoise(w, h, 8*field.Size+2, seed)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				k := 1 + clumpStrength*rough*clump[y][x]
				luma[y][x] *= k
				red[y][x] *= k
				green[y][x] *= k
				blue[y][x] *= k
			}
		}
	}

	bias := field.ChromaBias
	for y := range red {
		for x := range red[y] {
			r, g, b := red[y][x], green[y][x], blue[y][x]
			red[y][x] = r + bias*(b-g)/2
			blue[y][x] = b + bias*(r-g)/2
		}
	}

	return luma, red, green, blue
}

// roughen mixes the raw grid with its blurred copy: rough=1 keeps raw
// per-pixel noise, rough=0 gives fully smoothed grain cells.
func roughen(grid [][]float64, sigma float32, rough float64) [][]float64 {
	blurred := mask.BlurField(grid, sigma)
	for y := range blurred {
		for x := range blurred[y] {
			blurred[y][x] = rough*grid[y][x] + (1-rough)*blurred[y][x]
		}
	}
	return blurred
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func toByte(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

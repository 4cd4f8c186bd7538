// Package mask builds the luminance masks and spatial filters used when grain
// is composited onto an image.
package mask

import (
	"image"
	"image/color"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/disintegration/gift"
	"golang.org/x/image/draw"
)

// ShadowMask derives a shadow mask from img: Rec.709 luminance inverted, so
// 255 is deep shadow and 0 is full highlight.
func ShadowMask(img image.Image) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// RGBA() returns values in range 0-65535
			lum := (0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)) / 65535.0
			v := uint8(math.Round((1 - lum) * 255))
			out.SetGray(x-bounds.Min.X, y-bounds.Min.Y, color.Gray{Y: v})
		}
	}

	return out
}

// GaussianBlur applies a Gaussian blur filter to a mask.
// The sigma parameter controls the blur radius (larger = more blur).
func GaussianBlur(mask *image.Gray, sigma float32) *image.Gray {
	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewGray(g.Bounds(mask.Bounds()))
	g.Draw(dst, mask)
	return dst
}

// Resize scales mask to w x h with bilinear interpolation.
func Resize(mask *image.Gray, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), mask, mask.Bounds(), draw.Src, nil)
	return dst
}

// BlurField blurs a real-valued grid with a Gaussian of the given sigma.
// Values are carried through a 16-bit gray image normalized to the grid's
// peak magnitude, which keeps precision well below visible grain levels.
func BlurField(field [][]float64, sigma float32) [][]float64 {
	h := len(field)
	if h == 0 || len(field[0]) == 0 || sigma <= 0 {
		return cloneField(field)
	}
	w := len(field[0])

	peak := 0.0
	for _, row := range field {
		for _, v := range row {
			peak = math.Max(peak, math.Abs(v))
		}
	}
	if peak == 0 {
		return cloneField(field)
	}

	src := image.NewGray16(image.Rect(0, 0, w, h))
	for y, row := range field {
		for x, v := range row {
			n := (v/peak + 1) * 0.5 * 65535
			src.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(n))})
		}
	}

	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewGray16(g.Bounds(src.Bounds()))
	g.Draw(dst, src)

	out := make([][]float64, h)
	for y := range out {
		row := make([]float64, w)
		for x := range row {
			n := float64(dst.Gray16At(x, y).Y) / 65535
			row[x] = (n*2 - 1) * peak
		}
		out[y] = row
	}
	return out
}

// ClumpNoise returns a w x h grid of Perlin noise in roughly [-1,1].
// scale is the feature size in pixels; seed makes the result deterministic.
func ClumpNoise(w, h int, scale float64, seed int64) [][]float64 {
	if scale <= 0 {
		scale = 1
	}
	// alpha: persistence, beta: lacunarity, n: octaves
	p := perlin.NewPerlin(2.0, 2.0, 3, seed)

	out := make([][]float64, h)
	for y := range out {
		row := make([]float64, w)
		for x := range row {
			row[x] = p.Noise2D(float64(x)/scale, float64(y)/scale)
		}
		out[y] = row
	}
	return out
}

func cloneField(field [][]float64) [][]float64 {
	out := make([][]float64, len(field))
	for y, row := range field {
		out[y] = append([]float64(nil), row...)
	}
	return out
}

package grain

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// MaxPreviewDimension is the default bound on preview width and height.
const MaxPreviewDimension = 2048

// CheckPreviewSize reports whether a w x h preview can be rendered: both sides
// must be positive, since PNG cannot hold an empty image, and at most limit.
// limit <= 0 uses MaxPreviewDimension.
func CheckPreviewSize(w, h, limit int) error {
	if limit <= 0 {
		limit = MaxPreviewDimension
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: preview %dx%d must be positive", ErrInvalidDimension, w, h)
	}
	if w > limit || h > limit {
		return fmt.Errorf("%w: preview %dx%d exceeds maximum %d", ErrInvalidDimension, w, h, limit)
	}
	return nil
}

// LumaImage encodes the luma grid as gray with zero at mid-grey.
// scale maps a noise value of +/-scale to full white/black; scale <= 0 uses 1.
func (f *NoiseField) LumaImage(scale float64) *image.Gray {
	if scale <= 0 {
		scale = 1
	}
	w, h := f.Width(), f.Height()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: toByte(f.Luma[y][x] / scale)})
		}
	}
	return img
}

// ColorImage encodes the red, green and blue grids as an opaque image with
// zero at mid-grey.
func (f *NoiseField) ColorImage(scale float64) *image.NRGBA {
	if scale <= 0 {
		scale = 1
	}
	w, h := f.Width(), f.Height()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: toByte(f.Red[y][x] / scale),
				G: toByte(f.Green[y][x] / scale),
				B: toByte(f.Blue[y][x] / scale),
				A: 255,
			})
		}
	}
	return img
}

// toByte maps [-1,1] to [0,255].
func toByte(v float64) uint8 {
	v = (v + 1) * 0.5 * 255
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

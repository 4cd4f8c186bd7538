package mask

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestShadowMask(t *testing.T) {
	img := image.NewNRGBA(image.Rect(10, 10, 13, 11))
	img.SetNRGBA(10, 10, color.NRGBA{A: 255})                         // black
	img.SetNRGBA(11, 10, color.NRGBA{R: 255, G: 255, B: 255, A: 255}) // white
	img.SetNRGBA(12, 10, color.NRGBA{R: 128, G: 128, B: 128, A: 255}) // mid

	m := ShadowMask(img)

	if m.Bounds() != image.Rect(0, 0, 3, 1) {
		t.Fatalf("mask bounds = %v, want origin-based 3x1", m.Bounds())
	}
	if got := m.GrayAt(0, 0).Y; got != 255 {
		t.Errorf("black pixel should be full shadow, got %d", got)
	}
	if got := m.GrayAt(1, 0).Y; got != 0 {
		t.Errorf("white pixel should have no shadow, got %d", got)
	}
	if got := m.GrayAt(2, 0).Y; got < 120 || got > 135 {
		t.Errorf("mid grey should be around 127, got %d", got)
	}
}

func TestGaussianBlur(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 21, 21))
	m.SetGray(10, 10, color.Gray{Y: 255})

	blurred := GaussianBlur(m, 2.0)
	if blurred.Bounds() != m.Bounds() {
		t.Fatalf("blur changed bounds: %v", blurred.Bounds())
	}
	if blurred.GrayAt(10, 10).Y >= 255 {
		t.Error("blur should spread the peak")
	}
	if blurred.GrayAt(11, 10).Y == 0 {
		t.Error("blur should reach neighbours")
	}
}

func TestResize(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range m.Pix {
		m.Pix[i] = 200
	}

	out := Resize(m, 9, 7)
	if out.Bounds().Dx() != 9 || out.Bounds().Dy() != 7 {
		t.Fatalf("resize bounds = %v", out.Bounds())
	}
	if got := out.GrayAt(4, 3).Y; got < 199 || got > 201 {
		t.Errorf("uniform mask should stay uniform, got %d", got)
	}
}

func TestBlurField(t *testing.T) {
	field := make([][]float64, 15)
	for y := range field {
		field[y] = make([]float64, 15)
	}
	field[7][7] = 2.0
	field[0][0] = -1.0

	out := BlurField(field, 1.5)
	if len(out) != 15 || len(out[0]) != 15 {
		t.Fatalf("shape changed: %dx%d", len(out[0]), len(out))
	}
	if out[7][7] >= 2.0 || out[7][7] <= 0 {
		t.Errorf("peak should be attenuated but positive, got %f", out[7][7])
	}
	if out[7][8] <= 0.01 {
		t.Errorf("peak should spread to neighbours, got %f", out[7][8])
	}
	if field[7][7] != 2.0 {
		t.Error("input must not be modified")
	}
}

func TestBlurField_Degenerate(t *testing.T) {
	if out := BlurField(nil, 1); len(out) != 0 {
		t.Errorf("nil field should stay empty, got %v", out)
	}

	zero := [][]float64{{0, 0}, {0, 0}}
	out := BlurField(zero, 1)
	if out[1][1] != 0 {
		t.Errorf("zero field should stay zero, got %f", out[1][1])
	}

	same := [][]float64{{1, -1}}
	out = BlurField(same, 0)
	if out[0][0] != 1 || out[0][1] != -1 {
		t.Errorf("sigma 0 should copy, got %v", out)
	}
	out[0][0] = 5
	if same[0][0] != 1 {
		t.Error("copy must not alias input")
	}
}

func TestClumpNoise(t *testing.T) {
	a := ClumpNoise(64, 32, 8, 42)
	b := ClumpNoise(64, 32, 8, 42)
	c := ClumpNoise(64, 32, 8, 43)

	if len(a) != 32 || len(a[0]) != 64 {
		t.Fatalf("shape = %dx%d, want 64x32", len(a[0]), len(a))
	}

	varied := false
	differs := false
	for y := range a {
		for x := range a[y] {
			if a[y][x] != b[y][x] {
				t.Fatalf("same seed should produce same noise at %d,%d", x, y)
			}
			if a[y][x] != a[0][1] {
				varied = true
			}
			if a[y][x] != c[y][x] {
				differs = true
			}
			if math.Abs(a[y][x]) > 2 {
				t.Fatalf("noise out of range at %d,%d: %f", x, y, a[y][x])
			}
		}
	}
	if !varied {
		t.Error("noise should vary across the grid")
	}
	if !differs {
		t.Error("different seeds should produce different noise")
	}
}

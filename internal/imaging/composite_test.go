package imaging

import (
	"image"
	"image/color"
	"testing"
)

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestComposite_OpaqueForegroundKept(t *testing.T) {
	fg := createInMemoryImage(10, 10, color.NRGBA{200, 50, 25, 255})
	out := Composite(fg, RGBColor{0, 0, 255})

	if got := out.NRGBAAt(5, 5); got != (color.NRGBA{200, 50, 25, 255}) {
		t.Errorf("opaque pixel = %+v, want foreground color", got)
	}
}

func TestComposite_TransparentTakesBackground(t *testing.T) {
	fg := createInMemoryImage(10, 10, color.NRGBA{200, 50, 25, 0})
	out := Composite(fg, RGBColor{12, 34, 56})

	if got := out.NRGBAAt(3, 7); got != (color.NRGBA{12, 34, 56, 255}) {
		t.Errorf("transparent pixel = %+v, want background color", got)
	}
}

func TestComposite_HalfAlphaBlends(t *testing.T) {
	fg := createInMemoryImage(4, 4, color.NRGBA{255, 0, 0, 128})
	out := Composite(fg, RGBColor{0, 0, 255})

	got := out.NRGBAAt(1, 1)
	alpha := 128.0 / 255.0
	wantR := uint8(255 * alpha)
	wantB := uint8(255 * (1 - alpha))

	if absDiff(got.R, wantR) > 2 || got.G != 0 || absDiff(got.B, wantB) > 2 {
		t.Errorf("blended pixel = %+v, want about (%d,0,%d)", got, wantR, wantB)
	}
	if got.A != 255 {
		t.Errorf("alpha = %d, want 255", got.A)
	}
}

func TestComposite_OutputOpaqueAndSized(t *testing.T) {
	fg := image.NewNRGBA(image.Rect(0, 0, 17, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 17; x++ {
			fg.Set(x, y, color.NRGBA{uint8(x * 10), uint8(y * 20), 0, uint8(x * 15)})
		}
	}

	out := Composite(fg, White)
	if out.Bounds() != image.Rect(0, 0, 17, 9) {
		t.Fatalf("bounds = %v, want 17x9 at origin", out.Bounds())
	}
	if !out.Opaque() {
		t.Error("composite result should be fully opaque")
	}
}

func TestComposite_SubImageForeground(t *testing.T) {
	base := createFramedImage(20, 20, 5, color.NRGBA{0, 0, 0, 0}, color.NRGBA{0, 255, 0, 255})
	sub := base.SubImage(image.Rect(5, 5, 15, 15))

	out := Composite(sub, White)
	if out.Bounds() != image.Rect(0, 0, 10, 10) {
		t.Fatalf("bounds = %v, want 10x10 at origin", out.Bounds())
	}
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("corner pixel = %+v, want green", got)
	}
}

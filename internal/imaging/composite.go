package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// Composite places a foreground with per-pixel alpha over a solid background
// and returns the flattened, fully opaque result.
//
// The background is sized to the foreground, so the output has exactly the
// foreground's dimensions with its origin at (0,0). Each output pixel is
//
//	out = fg*alpha + bg*(1-alpha)
//
// computed on non-premultiplied components.
func Composite(fg image.Image, bg RGBColor) *image.NRGBA {
	size := fg.Bounds().Size()
	background := imaging.New(size.X, size.Y, bg.NRGBA())

	out := imaging.Overlay(background, fg, image.Pt(0, 0), 1.0)
	flatten(out)
	return out
}

// flatten forces every pixel opaque. Overlay onto an opaque background
// already yields alpha 255, rounding aside.
func flatten(img *image.NRGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
}

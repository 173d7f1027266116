package segment

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/ironsheep/photobox/internal/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// ChromaKey keys out the color that dominates the image border.
//
// Each pixel's alpha is derived from its CIE Lab distance to the key color:
// at or below Low the pixel is background, at or above High it is
// foreground, and in between alpha ramps linearly. The mask is then
// feathered with a Gaussian blur so edges do not alias.
type ChromaKey struct {
	// Band is the width in pixels of the border strip sampled for the key.
	Band int

	// Low and High bound the alpha ramp, in go-colorful Lab units
	// (L in 0..1).
	Low  float64
	High float64

	// Feather is the Gaussian blur radius applied to the mask; 0 disables it.
	Feather float64
}

// NewChromaKey returns a ChromaKey tuned for plain studio backdrops.
func NewChromaKey() *ChromaKey {
	return &ChromaKey{
		Band:    4,
		Low:     0.08,
		High:    0.20,
		Feather: 1.0,
	}
}

// Remove implements Segmenter.
func (k *ChromaKey) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	fg := imaging.ToNRGBA(img)

	key := imaging.DominantBorderColor(fg, k.Band).Colorful()
	kl, ka, kb := key.Lab()

	ramp := k.High - k.Low
	if ramp <= 0 {
		ramp = math.SmallestNonzeroFloat64
	}

	w, h := fg.Bounds().Dx(), fg.Bounds().Dy()
	mask := image.NewGray(fg.Bounds())
	for y := 0; y < h; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := 0; x < w; x++ {
			c := fg.NRGBAAt(x, y)
			l, a, bb := colorful.Color{
				R: float64(c.R) / 255.0,
				G: float64(c.G) / 255.0,
				B: float64(c.B) / 255.0,
			}.Lab()
			d := math.Sqrt(sq(l-kl) + sq(a-ka) + sq(bb-kb))

			alpha := (d - k.Low) / ramp
			alpha = math.Max(0, math.Min(1, alpha))
			mask.SetGray(x, y, color.Gray{Y: uint8(alpha*255 + 0.5)})
		}
	}

	var feathered image.Image = mask
	if k.Feather > 0 {
		feathered = blur.Gaussian(mask, k.Feather)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m, _, _, _ := feathered.At(x, y).RGBA()
			i := fg.PixOffset(x, y) + 3
			if ma := snap(uint8(m >> 8)); ma < fg.Pix[i] {
				fg.Pix[i] = ma
			}
		}
	}

	return fg, nil
}

// snap undoes the truncation of the blur: a flat 255 region can come back
// as 254.
func snap(a uint8) uint8 {
	switch {
	case a >= 254:
		return 255
	case a <= 1:
		return 0
	}
	return a
}

func sq(v float64) float64 {
	return v * v
}

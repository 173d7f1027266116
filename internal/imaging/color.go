package imaging

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// RGBColor represents an RGB color with 8-bit components.
//
// Each component ranges from 0 to 255, where:
//   - 0 represents no intensity (black for all components)
//   - 255 represents full intensity (white for all components)
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// White is the default replacement background.
var White = RGBColor{R: 255, G: 255, B: 255}

// Hex returns the color in "#RRGGBB" form.
func (c RGBColor) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// NRGBA returns the color as a fully opaque color.NRGBA.
func (c RGBColor) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// Colorful returns the color in go-colorful's float representation.
func (c RGBColor) Colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// ParseHexColor parses a hex color string like "#FF0000" or "#F00".
//
// Parameters:
//   - s: The color string. Surrounding whitespace and a leading '#' are
//     optional; digits are case-insensitive.
//
// Returns:
//   - RGBColor: The parsed color. Three-digit forms duplicate each digit, so
//     "#abc" yields (170, 187, 204).
//   - error: Non-nil if the string is not 3 or 6 hex digits long.
func ParseHexColor(s string) (RGBColor, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 3 && len(hex) != 6 {
		return RGBColor{}, fmt.Errorf("invalid hex color %q: expected #RGB or #RRGGBB", s)
	}
	for _, ch := range hex {
		if !isHexDigit(ch) {
			return RGBColor{}, fmt.Errorf("invalid hex color %q: %q is not a hex digit", s, ch)
		}
	}

	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return RGBColor{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return RGBColor{R: r, G: g, B: b}, nil
}

func isHexDigit(ch rune) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// colorFrequency is a color bucket and its share of the sampled pixels.
type colorFrequency struct {
	Hex        string   `json:"hex"`        // Hex color "#RRGGBB" (bucket mean)
	Percentage float64  `json:"percentage"` // Percentage of sampled pixels in this bucket (0-100)
	RGB        RGBColor `json:"rgb"`        // Mean RGB of the pixels in the bucket
}

// DominantBorderColor estimates the background color of a photo from the
// pixels in a band along its four edges.
//
// Pixels are grouped by quantizing each component to 16 levels and the mean
// color of the most populated bucket is returned, which keeps solid
// backdrops exact. Fully transparent pixels are ignored. A band of 0 or
// less samples only the outermost ring.
func DominantBorderColor(img image.Image, band int) RGBColor {
	if band < 1 {
		band = 1
	}
	b := img.Bounds()
	inBand := func(x, y int) bool {
		return x-b.Min.X < band || b.Max.X-1-x < band || y-b.Min.Y < band || b.Max.Y-1-y < band
	}

	colors := dominantColors(img, b, inBand)
	if len(colors) == 0 {
		return White
	}
	return colors[0].RGB
}

type colorBucket struct {
	n       int
	r, g, b int
}

func dominantColors(img image.Image, bounds image.Rectangle, include func(x, y int) bool) []colorFrequency {
	buckets := make(map[[3]uint8]*colorBucket)
	total := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if include != nil && !include(x, y) {
				continue
			}
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A == 0 {
				continue
			}
			key := [3]uint8{c.R / 16, c.G / 16, c.B / 16}
			bk, ok := buckets[key]
			if !ok {
				bk = &colorBucket{}
				buckets[key] = bk
			}
			bk.n++
			bk.r += int(c.R)
			bk.g += int(c.G)
			bk.b += int(c.B)
			total++
		}
	}

	colors := make([]colorFrequency, 0, len(buckets))
	for _, bk := range buckets {
		rgb := RGBColor{
			R: uint8((bk.r + bk.n/2) / bk.n),
			G: uint8((bk.g + bk.n/2) / bk.n),
			B: uint8((bk.b + bk.n/2) / bk.n),
		}
		colors = append(colors, colorFrequency{
			Hex:        rgb.Hex(),
			Percentage: float64(bk.n) / float64(total) * 100,
			RGB:        rgb,
		})
	}

	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Percentage != colors[j].Percentage {
			return colors[i].Percentage > colors[j].Percentage
		}
		return colors[i].Hex < colors[j].Hex
	})

	return colors
}

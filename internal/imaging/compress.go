package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

// Output formats accepted by Compress.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// CompressOptions controls Compress.
type CompressOptions struct {
	// Quality is the JPEG quality in 0.1..1.0. PNG output ignores it.
	Quality float64

	// MaxWidth and MaxHeight bound the output size; 0 leaves that side
	// unbounded. The aspect ratio is kept and images are never enlarged.
	MaxWidth  int
	MaxHeight int

	// Format is FormatJPEG or FormatPNG.
	Format string
}

// CompressResult is a re-encoded image.
type CompressResult struct {
	Data   []byte
	Width  int
	Height int
}

// Compress downsizes img to fit the bounds in opts and re-encodes it.
//
// JPEG has no alpha channel, so transparent pixels are flattened onto white
// first.
func Compress(img image.Image, opts CompressOptions) (*CompressResult, error) {
	b := img.Bounds()
	w, h := opts.MaxWidth, opts.MaxHeight
	if w <= 0 {
		w = b.Dx()
	}
	if h <= 0 {
		h = b.Dy()
	}

	var out image.Image = img
	if w < b.Dx() || h < b.Dy() {
		out = imaging.Fit(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	var err error
	switch opts.Format {
	case FormatJPEG:
		q := int(math.Round(opts.Quality * 100))
		err = imaging.Encode(&buf, Composite(out, White), imaging.JPEG, imaging.JPEGQuality(q))
	case FormatPNG:
		err = imaging.Encode(&buf, out, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	default:
		return nil, fmt.Errorf("unsupported output format %q", opts.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", opts.Format, err)
	}

	size := out.Bounds().Size()
	return &CompressResult{Data: buf.Bytes(), Width: size.X, Height: size.Y}, nil
}

package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ImageInfo contains metadata about an encoded image.
//
// It is read from the image header only, so it is cheap to compute for
// logging before a full decode.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the detected image format: "png", "jpeg", "gif", "bmp", "webp"...
	// Detection is based on file contents, not a file name.
	Format string `json:"format"`

	// HasAlpha reports whether the color model can carry transparency.
	HasAlpha bool `json:"has_alpha"`

	// SizeBytes is the encoded size in bytes.
	SizeBytes int `json:"size_bytes"`
}

// Inspect reads the header of an encoded image and returns its metadata.
//
// Returns an error if the bytes are not a recognized image format.
func Inspect(data []byte) (*ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}

	// Opaque models (Gray, YCbCr, CMYK) turn transparent black into opaque black.
	hasAlpha := false
	if cfg.ColorModel != nil {
		_, _, _, a := cfg.ColorModel.Convert(color.Transparent).RGBA()
		hasAlpha = a == 0
	}

	return &ImageInfo{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Format:    format,
		HasAlpha:  hasAlpha,
		SizeBytes: len(data),
	}, nil
}

// Decode decodes image bytes into an *image.NRGBA with its origin at (0,0).
//
// JPEG EXIF orientation is applied. Returns an error if the bytes are empty
// or not a supported image format.
func Decode(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	return decode(bytes.NewReader(data))
}

// Load reads and decodes an image file.
func Load(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	return decode(f)
}

func decode(r io.Reader) (*image.NRGBA, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return imaging.Clone(img), nil
}

// ToNRGBA copies img into a new *image.NRGBA with its origin at (0,0).
func ToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// EncodePNG encodes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

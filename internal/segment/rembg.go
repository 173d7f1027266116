package segment

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/photobox/internal/imaging"
	"github.com/ironsheep/photobox/internal/model"
)

//go:embed scripts/rembg.py
var rembgScript string

// Rembg runs the rembg library in a Python interpreter.
//
// The image travels to the interpreter as PNG on stdin and the foreground
// comes back as an RGBA PNG on stdout.
type Rembg struct {
	Python string
}

// Remove implements Segmenter.
func (r *Rembg) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	input, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	out, err := model.RunPython(ctx, r.Python, rembgScript, input)
	if err != nil {
		var exitErr *model.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("rembg failed: %w", err)
		}
		return nil, err
	}

	fg, err := imaging.Decode(out)
	if err != nil {
		return nil, fmt.Errorf("rembg returned an unreadable image: %w", err)
	}

	if fg.Bounds().Size() != img.Bounds().Size() {
		return nil, fmt.Errorf("rembg returned %v for a %v input",
			fg.Bounds().Size(), img.Bounds().Size())
	}
	return fg, nil
}

// Package segment provides background segmentation backends.
//
// A Segmenter separates the foreground subject of a photo from its
// background and returns the foreground with per-pixel alpha. Two backends
// exist:
//
//   - rembg: the U2-Net model through the Python rembg library, run as a
//     short-lived interpreter process per call.
//   - chromakey: a pure-Go fallback that keys out the dominant border color.
//     It is only suitable for photos shot against a plain backdrop (ID
//     photos, product shots).
//
// Backends are wrapped in a model.Handle so the dependency probe runs on
// first use rather than at startup.
package segment

import (
	"context"
	"fmt"
	"image"

	"github.com/ironsheep/photobox/internal/model"
	"github.com/sirupsen/logrus"
)

// Backend names accepted by New.
const (
	BackendRembg     = "rembg"
	BackendChromaKey = "chromakey"
)

// u2netMinBytes is the smallest plausible u2net.onnx; the published file is
// about 176 MB.
const u2netMinBytes = 170 * 1024 * 1024

// Segmenter removes the background from an image.
type Segmenter interface {
	// Remove returns img's foreground with per-pixel alpha. The result has
	// the same dimensions as img.
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// Func adapts a function to the Segmenter interface.
type Func func(ctx context.Context, img image.Image) (image.Image, error)

// Remove calls f(ctx, img).
func (f Func) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	return f(ctx, img)
}

// Options configures the backends built by New.
type Options struct {
	// Python is the interpreter used by the rembg backend.
	Python string

	// WeightsPath is the u2net.onnx location checked at initialization.
	WeightsPath string

	Log logrus.FieldLogger
}

// New returns a lazily initialized handle for the named backend.
func New(backend string, opts Options) (*model.Handle[Segmenter], error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("segmenter", backend)

	switch backend {
	case BackendRembg:
		python := opts.Python
		if python == "" {
			python = "python3"
		}
		return model.NewHandle(backend, func(ctx context.Context) (Segmenter, error) {
			err := model.ProbePython(ctx, python,
				model.PythonModule{Import: "rembg", Package: "rembg"},
				model.PythonModule{Import: "PIL", Package: "Pillow"},
				model.PythonModule{Import: "numpy", Package: "numpy"},
			)
			if err != nil {
				return nil, err
			}
			model.CheckWeights(log, opts.WeightsPath, u2netMinBytes)
			log.Debug("rembg available")
			return &Rembg{Python: python}, nil
		}), nil

	case BackendChromaKey:
		return model.NewHandle(backend, func(ctx context.Context) (Segmenter, error) {
			return NewChromaKey(), nil
		}), nil

	default:
		return nil, fmt.Errorf("unknown segmenter %q", backend)
	}
}

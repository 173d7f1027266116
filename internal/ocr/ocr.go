package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/ironsheep/photobox/internal/model"
	"github.com/sirupsen/logrus"
)

// Engine names accepted by New.
const (
	EngineRapidOCR  = "rapidocr"
	EngineTesseract = "tesseract"
)

// Detection is one recognized text line.
type Detection struct {
	// Box is the quadrilateral around the line, as corner points in pixel
	// coordinates. It may be empty if the engine did not report one.
	Box [][2]float64 `json:"box"`

	// Text is the recognized line.
	Text string `json:"text"`

	// Score is the engine's recognition confidence (0.0 to 1.0).
	Score float64 `json:"score"`
}

// Recognizer detects and recognizes text in an image file.
type Recognizer interface {
	Recognize(ctx context.Context, path string) ([]Detection, error)
}

// Func adapts a function to the Recognizer interface.
type Func func(ctx context.Context, path string) ([]Detection, error)

// Recognize calls f(ctx, path).
func (f Func) Recognize(ctx context.Context, path string) ([]Detection, error) {
	return f(ctx, path)
}

// Options configures the engines built by New.
type Options struct {
	// Python is the interpreter used by the rapidocr engine.
	Python string

	// Language is the Tesseract language code, e.g. "eng".
	Language string

	Log logrus.FieldLogger
}

// New returns a lazily initialized handle for the named engine.
func New(engine string, opts Options) (*model.Handle[Recognizer], error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("recognizer", engine)

	switch engine {
	case EngineRapidOCR:
		python := opts.Python
		if python == "" {
			python = "python3"
		}
		return model.NewHandle(engine, func(ctx context.Context) (Recognizer, error) {
			err := model.ProbePython(ctx, python,
				model.PythonModule{Import: "rapidocr_onnxruntime", Package: "rapidocr-onnxruntime"},
				model.PythonModule{Import: "PIL", Package: "Pillow"},
			)
			if err != nil {
				return nil, err
			}
			log.Debug("rapidocr available")
			return &RapidOCR{Python: python}, nil
		}), nil

	case EngineTesseract:
		lang := opts.Language
		if lang == "" {
			lang = "eng"
		}
		return model.NewHandle(engine, func(ctx context.Context) (Recognizer, error) {
			rec, err := newTesseract(lang)
			if err != nil {
				return nil, err
			}
			log.WithField("language", lang).Debug("tesseract available")
			return rec, nil
		}), nil

	default:
		return nil, fmt.Errorf("unknown OCR engine %q", engine)
	}
}

// JoinText joins the detected lines with single spaces in model order.
// Lines that are empty after trimming are skipped.
func JoinText(dets []Detection) string {
	parts := make([]string, 0, len(dets))
	for _, d := range dets {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		parts = append(parts, d.Text)
	}
	return strings.Join(parts, " ")
}

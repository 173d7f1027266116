package worker

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"os"

	"github.com/ironsheep/photobox/internal/imaging"
	"github.com/ironsheep/photobox/internal/ocr"
	"github.com/ironsheep/photobox/internal/segment"
)

// DefaultConfidence is the confidence reported with OCR results.
const DefaultConfidence = 0.8

// OCRResult is the JSON envelope of a text extraction.
type OCRResult struct {
	Success    bool    `json:"success"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// MarshalJSON writes failures as {success, error} without the empty text.
func (r OCRResult) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{false, r.Error})
	}
	type plain OCRResult
	return json.Marshal(plain(r))
}

// RemoveBackground replaces the background of an encoded image with a solid
// color and returns the result as an opaque PNG.
//
// The color is validated before any model work. A failure of the segmenter
// is returned as ProcessingFailure with its message and is not retried.
func RemoveBackground(ctx context.Context, seg segment.Segmenter, data []byte, bgHex string) ([]byte, error) {
	bg, err := imaging.ParseHexColor(bgHex)
	if err != nil {
		return nil, Invalid("", err)
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, Invalid("", err)
	}

	return removeBackground(ctx, seg, img, bg)
}

// RemoveBackgroundFile is RemoveBackground for files: it reads inPath and
// writes the PNG to outPath.
func RemoveBackgroundFile(ctx context.Context, seg segment.Segmenter, inPath, outPath, bgHex string) error {
	bg, err := imaging.ParseHexColor(bgHex)
	if err != nil {
		return Invalid("", err)
	}

	img, err := imaging.Load(inPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Error{Kind: NotFound, Err: err}
		}
		return Invalid("", err)
	}

	out, err := removeBackground(ctx, seg, img, bg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, out, 0o600); err != nil {
		return Failed("failed to write result", err)
	}
	return nil
}

func removeBackground(ctx context.Context, seg segment.Segmenter, img image.Image, bg imaging.RGBColor) ([]byte, error) {
	fg, err := seg.Remove(ctx, img)
	if err != nil {
		return nil, Classify("failed to remove background", err)
	}

	out, err := imaging.EncodePNG(imaging.Composite(fg, bg))
	if err != nil {
		return nil, Failed("", err)
	}
	return out, nil
}

// ExtractText recognizes the text in an encoded image.
//
// The bytes are written to a temporary file for the recognizer, which is
// removed before ExtractText returns on every path. confidence is reported
// as-is in the result.
func ExtractText(ctx context.Context, rec ocr.Recognizer, data []byte, confidence float64) (*OCRResult, error) {
	if len(data) == 0 {
		return nil, Invalid("", imaging.ErrEmptyPayload)
	}

	tmp, err := os.CreateTemp("", "photobox-ocr-*.png")
	if err != nil {
		return nil, Failed("failed to create temp file", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, Failed("failed to write temp file", err)
	}

	dets, err := rec.Recognize(ctx, path)
	if err != nil {
		return nil, Classify("OCR failed", err)
	}

	return &OCRResult{
		Success:    true,
		Text:       ocr.JoinText(dets),
		Confidence: confidence,
	}, nil
}

//go:build tesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/ironsheep/photobox/internal/model"
	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text lines with the native Tesseract engine.
type Tesseract struct {
	// Language is the Tesseract language code, e.g. "eng". The corresponding
	// traineddata must be installed.
	Language string
}

// newTesseract checks that the engine can initialize for lang by running it
// on a blank image.
func newTesseract(lang string) (Recognizer, error) {
	blank := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range blank.Pix {
		blank.Pix[i] = color.White.Y
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, blank); err != nil {
		return nil, fmt.Errorf("failed to encode probe image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set probe image: %w", err)
	}
	if _, err := client.Text(); err != nil {
		return nil, fmt.Errorf("%w (%v)", model.Missing("tesseract-ocr-"+lang), err)
	}
	return &Tesseract{Language: lang}, nil
}

// Recognize implements Recognizer. Lines are returned in Tesseract's
// reading order and Score is the line confidence scaled to 0..1.
func (t *Tesseract) Recognize(ctx context.Context, path string) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.Language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImage(path); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	dets := make([]Detection, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		r := box.Box
		dets = append(dets, Detection{
			Box: [][2]float64{
				{float64(r.Min.X), float64(r.Min.Y)},
				{float64(r.Max.X), float64(r.Min.Y)},
				{float64(r.Max.X), float64(r.Max.Y)},
				{float64(r.Min.X), float64(r.Max.Y)},
			},
			Text:  text,
			Score: box.Confidence / 100.0,
		})
	}
	return dets, nil
}

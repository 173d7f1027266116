//go:build !tesseract

package ocr

import "github.com/ironsheep/photobox/internal/model"

// newTesseract reports the engine as missing in builds without the
// "tesseract" tag.
func newTesseract(lang string) (Recognizer, error) {
	return nil, model.Missing("tesseract (rebuild with -tags tesseract)")
}

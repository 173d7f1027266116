// Package ocr provides text detection and recognition backends.
//
// A Recognizer finds text lines in an image file and returns them as
// Detections in reading order. Two engines exist:
//
//   - rapidocr: RapidOCR on ONNX Runtime, run as a short-lived Python
//     interpreter per call. This is the default engine.
//   - tesseract: native Tesseract through gosseract/v2 at text-line level.
//     It needs cgo and libtesseract, so it is only compiled with the
//     "tesseract" build tag; without it the engine reports a missing
//     dependency.
//
// # Prerequisites
//
// For rapidocr:
//   - pip install rapidocr-onnxruntime
//
// For tesseract:
//   - Ubuntu/Debian: apt-get install libtesseract-dev tesseract-ocr-eng
//   - macOS: brew install tesseract
//   - build with: go build -tags tesseract ./cmd/photobox
//
// # Temporary Files
//
// Recognizers read from a path. Callers holding bytes are expected to write
// them to a temporary file and remove it afterwards; see worker.ExtractText.
package ocr

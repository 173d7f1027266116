package ocr

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/photobox/internal/model"
)

//go:embed scripts/rapidocr.py
var rapidocrScript string

// exitImportFailed is the status rapidocr.py exits with when the model
// library cannot be imported.
const exitImportFailed = 3

// RapidOCR runs RapidOCR in a Python interpreter.
type RapidOCR struct {
	Python string
}

// Recognize implements Recognizer.
func (r *RapidOCR) Recognize(ctx context.Context, path string) ([]Detection, error) {
	out, err := model.RunPython(ctx, r.Python, rapidocrScript, nil, path)
	if err != nil {
		var exitErr *model.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Code == exitImportFailed {
				return nil, model.Missing("rapidocr-onnxruntime")
			}
			return nil, fmt.Errorf("rapidocr failed: %w", err)
		}
		return nil, err
	}
	return parseDetections(out)
}

// parseDetections reads the [[box, text, score], ...] array printed by
// rapidocr.py. Entries without a string text are skipped.
func parseDetections(data []byte) ([]Detection, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rapidocr output: %w", err)
	}

	dets := make([]Detection, 0, len(raw))
	for _, item := range raw {
		var fields []json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || len(fields) < 2 {
			continue
		}

		var det Detection
		if err := json.Unmarshal(fields[1], &det.Text); err != nil {
			continue
		}
		if err := json.Unmarshal(fields[0], &det.Box); err != nil {
			det.Box = nil
		}
		if len(fields) > 2 {
			if err := json.Unmarshal(fields[2], &det.Score); err != nil {
				det.Score = 0
			}
		}
		dets = append(dets, det)
	}
	return dets, nil
}

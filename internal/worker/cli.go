package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ironsheep/photobox/internal/imaging"
	"github.com/ironsheep/photobox/internal/model"
	"github.com/ironsheep/photobox/internal/ocr"
	"github.com/ironsheep/photobox/internal/segment"
	"github.com/sirupsen/logrus"
)

// Worker subcommand names.
const (
	CmdRemoveBackground = "remove-background"
	CmdOCR              = "ocr"
)

const removeBackgroundUsage = "Usage: photobox worker remove-background <input_path> <output_path> <bg_color>\n" +
	"       photobox worker remove-background --stdin"

// CLI runs the worker subcommands. Results go to Stdout as JSON or files;
// diagnostics go to Stderr.
type CLI struct {
	Segmenter  *model.Handle[segment.Segmenter]
	Recognizer *model.Handle[ocr.Recognizer]

	// Confidence is reported with OCR results.
	Confidence float64

	Log    logrus.FieldLogger
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run dispatches args (the words after "worker") and returns the process
// exit status.
func (c *CLI) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprintf(c.Stderr, "Usage: photobox worker <%s|%s> ...\n", CmdRemoveBackground, CmdOCR)
		return 1
	}

	switch args[0] {
	case CmdRemoveBackground:
		if len(args) == 2 && args[1] == "--stdin" {
			return c.removeBackgroundStdin(ctx)
		}
		return c.removeBackgroundArgs(ctx, args[1:])
	case CmdOCR:
		return c.ocr(ctx)
	default:
		fmt.Fprintf(c.Stderr, "unknown worker command %q\n", args[0])
		return 1
	}
}

// removeBackgroundArgs handles "remove-background <in> <out> <color>".
func (c *CLI) removeBackgroundArgs(ctx context.Context, args []string) int {
	if len(args) != 3 {
		fmt.Fprintln(c.Stderr, removeBackgroundUsage)
		return 1
	}
	inPath, outPath, color := args[0], args[1], args[2]

	seg, err := c.Segmenter.Get(ctx)
	if err != nil {
		fmt.Fprintln(c.Stderr, dependencyMessage(err))
		return 1
	}

	log := c.Log.WithFields(logrus.Fields{"input": inPath, "color": color})
	log.Debug("removing background")

	if err := RemoveBackgroundFile(ctx, seg, inPath, outPath, color); err != nil {
		log.WithError(err).Debug("background removal failed")
		fmt.Fprintf(c.Stderr, "Image processing failed: %v\n", err)
		return 1
	}

	log.WithField("output", outPath).Debug("result saved")
	return 0
}

type removeBackgroundRequest struct {
	Image      string `json:"image"`
	NewBgColor string `json:"newBgColor"`
}

type removeBackgroundResult struct {
	Success      bool   `json:"success"`
	TempFilePath string `json:"tempFilePath,omitempty"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
}

// removeBackgroundStdin handles "remove-background --stdin". The result PNG
// is left in a temp file owned by the caller.
func (c *CLI) removeBackgroundStdin(ctx context.Context) int {
	fail := func(msg string) int {
		c.writeJSON(removeBackgroundResult{Error: msg})
		return 1
	}

	seg, err := c.Segmenter.Get(ctx)
	if err != nil {
		return fail(dependencyMessage(err))
	}

	var req removeBackgroundRequest
	if err := json.NewDecoder(c.Stdin).Decode(&req); err != nil {
		return fail(fmt.Sprintf("Invalid JSON input: %v", err))
	}
	if req.Image == "" {
		return fail("No image data provided")
	}
	if req.NewBgColor == "" {
		req.NewBgColor = imaging.White.Hex()
	}

	data, err := imaging.DecodeBase64(req.Image)
	if err != nil {
		return fail("Failed to decode image data")
	}

	png, err := RemoveBackground(ctx, seg, data, req.NewBgColor)
	if err != nil {
		return fail(err.Error())
	}

	out, err := os.CreateTemp("", "photobox-bg-*.png")
	if err != nil {
		return fail(fmt.Sprintf("failed to create temp file: %v", err))
	}
	_, err = out.Write(png)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out.Name())
		return fail(fmt.Sprintf("failed to write result: %v", err))
	}

	c.writeJSON(removeBackgroundResult{
		Success:      true,
		TempFilePath: out.Name(),
		Message:      "Background removal and color change completed successfully",
	})
	return 0
}

type ocrRequest struct {
	Image    string `json:"image"`
	Filename string `json:"filename"`
}

// ocr handles "ocr". Stdin is either a raw base64 image (optionally a data
// URL) or {"image": ..., "filename": ...}; one JSON line is printed.
func (c *CLI) ocr(ctx context.Context) int {
	fail := func(msg string) int {
		c.writeJSON(OCRResult{Error: msg})
		return 1
	}

	rec, err := c.Recognizer.Get(ctx)
	if err != nil {
		return fail(dependencyMessage(err))
	}

	input, err := io.ReadAll(c.Stdin)
	if err != nil {
		return fail(fmt.Sprintf("failed to read input: %v", err))
	}

	payload := strings.TrimSpace(string(input))
	if strings.HasPrefix(payload, "{") {
		var req ocrRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return fail(fmt.Sprintf("Invalid JSON input: %v", err))
		}
		payload = req.Image
		c.Log.WithField("filename", req.Filename).Debug("OCR request")
	}
	if payload == "" {
		return fail("No image data provided")
	}

	data, err := imaging.DecodeBase64(payload)
	if err != nil {
		return fail(fmt.Sprintf("Base64 decode failed: %v", err))
	}

	result, err := ExtractText(ctx, rec, data, c.Confidence)
	if err != nil {
		return fail(err.Error())
	}
	c.writeJSON(result)
	return 0
}

func (c *CLI) writeJSON(v interface{}) {
	if err := json.NewEncoder(c.Stdout).Encode(v); err != nil {
		c.Log.WithError(err).Error("failed to write result")
	}
}

// dependencyMessage unwraps a handle error to the bare "Missing
// dependencies: ..." text when that is the cause.
func dependencyMessage(err error) string {
	var missing *model.MissingError
	if errors.As(err, &missing) {
		return missing.Error()
	}
	return err.Error()
}

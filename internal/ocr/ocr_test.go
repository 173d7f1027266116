package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/photobox/internal/model"
	"github.com/sirupsen/logrus/hooks/test"
)

// writeFakeInterpreter writes an executable that stands in for python.
// Arguments arrive as "-c <script> <image path>", so the image path is $3.
func writeFakeInterpreter(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-python")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write fake interpreter: %v", err)
	}
	return path
}

func TestJoinText(t *testing.T) {
	tests := []struct {
		name string
		dets []Detection
		want string
	}{
		{"empty", nil, ""},
		{"single", []Detection{{Text: "HELLO"}}, "HELLO"},
		{"order kept", []Detection{{Text: "B"}, {Text: "A"}, {Text: "C"}}, "B A C"},
		{"blank lines skipped", []Detection{{Text: "one"}, {Text: "  "}, {Text: ""}, {Text: "two"}}, "one two"},
		{"inner spacing kept", []Detection{{Text: "Total:  42"}, {Text: "EUR"}}, "Total:  42 EUR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinText(tt.dets); got != tt.want {
				t.Errorf("JoinText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDetections(t *testing.T) {
	out := `[
		[[[1,2],[30,2],[30,12],[1,12]], "Invoice", 0.97],
		[[[1,20],[30,20],[30,30],[1,30]], 42, 0.5],
		["short"],
		[null, "No box", 0.8],
		[[[1,40],[9,40],[9,50],[1,50]], "Total"]
	]`

	dets, err := parseDetections([]byte(out))
	if err != nil {
		t.Fatalf("parseDetections failed: %v", err)
	}
	if len(dets) != 3 {
		t.Fatalf("got %d detections, want 3: %+v", len(dets), dets)
	}
	if dets[0].Text != "Invoice" || dets[0].Score != 0.97 || len(dets[0].Box) != 4 {
		t.Errorf("first detection = %+v", dets[0])
	}
	if dets[0].Box[1] != [2]float64{30, 2} {
		t.Errorf("box corner = %v, want [30 2]", dets[0].Box[1])
	}
	if dets[1].Text != "No box" || dets[1].Box != nil {
		t.Errorf("second detection = %+v", dets[1])
	}
	if dets[2].Text != "Total" || dets[2].Score != 0 {
		t.Errorf("third detection = %+v", dets[2])
	}
	if got := JoinText(dets); got != "Invoice No box Total" {
		t.Errorf("JoinText = %q", got)
	}
}

func TestParseDetections_Invalid(t *testing.T) {
	for _, in := range []string{"", "null text", `{"text": "x"}`} {
		if _, err := parseDetections([]byte(in)); err == nil {
			t.Errorf("parseDetections(%q) should fail", in)
		}
	}
}

func TestParseDetections_Empty(t *testing.T) {
	dets, err := parseDetections([]byte("[]\n"))
	if err != nil {
		t.Fatalf("parseDetections failed: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("got %d detections, want 0", len(dets))
	}
}

func TestRapidOCR_Recognize(t *testing.T) {
	python := writeFakeInterpreter(t, `test -f "$3" || exit 9
echo '[[[[0,0],[10,0],[10,5],[0,5]], "HELLO", 0.99], [[[0,8],[10,8],[10,13],[0,13]], "WORLD", 0.95]]'`)
	img := filepath.Join(t.TempDir(), "in.png")
	if err := os.WriteFile(img, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}

	dets, err := (&RapidOCR{Python: python}).Recognize(context.Background(), img)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if got := JoinText(dets); got != "HELLO WORLD" {
		t.Errorf("text = %q, want %q", got, "HELLO WORLD")
	}
}

func TestRapidOCR_ImportFailure(t *testing.T) {
	python := writeFakeInterpreter(t, `echo "Import RapidOCR failed: No module named rapidocr_onnxruntime" >&2; exit 3`)

	_, err := (&RapidOCR{Python: python}).Recognize(context.Background(), "in.png")
	if !errors.Is(err, model.ErrDependencyMissing) {
		t.Fatalf("error = %v, want a missing dependency", err)
	}
	if !strings.Contains(err.Error(), "rapidocr-onnxruntime") {
		t.Errorf("error should name the package: %v", err)
	}
}

func TestRapidOCR_ModelFailure(t *testing.T) {
	python := writeFakeInterpreter(t, `echo "cannot identify image file" >&2; exit 1`)

	_, err := (&RapidOCR{Python: python}).Recognize(context.Background(), "in.png")
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, model.ErrDependencyMissing) {
		t.Error("a model failure is not a missing dependency")
	}
	if !strings.Contains(err.Error(), "cannot identify image file") {
		t.Errorf("error should forward the model message: %v", err)
	}
}

func TestNew(t *testing.T) {
	log, _ := test.NewNullLogger()

	h, err := New(EngineRapidOCR, Options{Log: log})
	if err != nil {
		t.Fatalf("New(rapidocr) failed: %v", err)
	}
	if h.Name() != EngineRapidOCR {
		t.Errorf("Name = %q", h.Name())
	}

	if _, err := New(EngineTesseract, Options{Log: log}); err != nil {
		t.Errorf("New(tesseract) failed: %v", err)
	}

	if _, err := New("easyocr", Options{Log: log}); err == nil {
		t.Error("New should reject an unknown engine")
	}
}

func TestNew_MissingInterpreter(t *testing.T) {
	log, _ := test.NewNullLogger()

	h, err := New(EngineRapidOCR, Options{Python: "/nonexistent/python3", Log: log})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := h.Get(context.Background()); !errors.Is(err, model.ErrDependencyMissing) {
		t.Errorf("Get error = %v, want a missing dependency", err)
	}
	// A failed probe is not cached.
	if _, err := h.Get(context.Background()); !errors.Is(err, model.ErrDependencyMissing) {
		t.Errorf("second Get error = %v, want a missing dependency", err)
	}
}

func TestFunc(t *testing.T) {
	var r Recognizer = Func(func(ctx context.Context, path string) ([]Detection, error) {
		return []Detection{{Text: path}}, nil
	})
	dets, err := r.Recognize(context.Background(), "a.png")
	if err != nil || len(dets) != 1 || dets[0].Text != "a.png" {
		t.Errorf("Recognize = %v, %v", dets, err)
	}
}

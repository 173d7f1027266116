//go:build tesseract

package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/photobox/internal/model"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// createTextImage renders lines of text, scaled up so Tesseract can read
// the bitmap font, and writes them to a PNG in a test temp dir.
func createTextImage(t *testing.T, lines []string, scale int) string {
	t.Helper()

	maxLen := 0
	for _, line := range lines {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	w, h := maxLen*7+40, len(lines)*16+30

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	for i, line := range lines {
		drawText(small, 20, 20+i*16, line, color.Black)
	}

	img := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := small.At(x, y)
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.Set(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}

	path := filepath.Join(t.TempDir(), "text.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// newTestTesseract skips the test when libtesseract or eng data is absent.
func newTestTesseract(t *testing.T) Recognizer {
	t.Helper()
	rec, err := newTesseract("eng")
	if err != nil {
		if errors.Is(err, model.ErrDependencyMissing) {
			t.Skipf("Tesseract not available: %v", err)
		}
		t.Fatalf("newTesseract failed: %v", err)
	}
	return rec
}

func TestTesseract_Recognize(t *testing.T) {
	rec := newTestTesseract(t)
	path := createTextImage(t, []string{"HELLO WORLD"}, 4)

	dets, err := rec.Recognize(context.Background(), path)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	t.Logf("Detected: %q", JoinText(dets))

	for _, d := range dets {
		if d.Score < 0 || d.Score > 1 {
			t.Errorf("score %f out of range", d.Score)
		}
		if len(d.Box) != 4 {
			t.Errorf("box has %d points, want 4", len(d.Box))
		}
	}
	if len(dets) > 0 && !strings.Contains(strings.ToUpper(JoinText(dets)), "HELLO") {
		t.Logf("Warning: expected HELLO in %q", JoinText(dets))
	}
}

func TestTesseract_MultiLine(t *testing.T) {
	rec := newTestTesseract(t)
	path := createTextImage(t, []string{"LINE ONE", "LINE TWO", "LINE THREE"}, 3)

	dets, err := rec.Recognize(context.Background(), path)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	for i, d := range dets {
		t.Logf("  Line %d: %q (score: %.2f)", i, d.Text, d.Score)
	}
	for i := 1; i < len(dets); i++ {
		if dets[i].Box[0][1] < dets[i-1].Box[0][1] {
			t.Errorf("line %d starts above line %d", i, i-1)
		}
	}
}

func TestTesseract_NonExistentFile(t *testing.T) {
	rec := newTestTesseract(t)
	if _, err := rec.Recognize(context.Background(), "/nonexistent/image.png"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestTesseract_Canceled(t *testing.T) {
	rec := newTestTesseract(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rec.Recognize(ctx, "unused.png"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

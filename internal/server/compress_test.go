package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"

	"github.com/ironsheep/photobox/internal/imaging"
)

// encodeTestPNG returns a width x height PNG with a horizontal gradient.
func encodeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 6), G: uint8(y * 12), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// newCompressRequest builds a multipart POST. A nil file leaves the file part
// out.
func newCompressRequest(t *testing.T, path string, file []byte, ctype string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if file != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="file"; filename="photo"`)
		h.Set("Content-Type", ctype)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		part.Write(file)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, path, &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func serve(s *Server, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func TestCompress_JPEG(t *testing.T) {
	s, _ := newTestServer(t, &fakeProcessor{}, 0)
	src := encodeTestPNG(t, 40, 20)

	r := newCompressRequest(t, "/compress", src, "image/png", map[string]string{
		"quality":  "0.5",
		"maxWidth": "10",
	})
	w := serve(s, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	want := map[string]string{
		"Content-Type":        "image/jpeg",
		"Cache-Control":       "no-cache",
		"X-Original-Width":    "40",
		"X-Original-Height":   "20",
		"X-Compressed-Width":  "10",
		"X-Compressed-Height": "5",
		"X-Quality":           "0.5",
		"X-Format":            "jpeg",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if got := w.Header().Get("X-Original-Size"); got != strconv.Itoa(len(src)) {
		t.Errorf("X-Original-Size = %q, want %d", got, len(src))
	}
	if got := w.Header().Get("X-Compressed-Size"); got != strconv.Itoa(w.Body.Len()) {
		t.Errorf("X-Compressed-Size = %q, body is %d bytes", got, w.Body.Len())
	}
	if w.Header().Get("X-Compression-Ratio") == "" {
		t.Error("missing X-Compression-Ratio")
	}
	if !strings.Contains(w.Header().Get("Access-Control-Expose-Headers"), "X-Compressed-Width") {
		t.Errorf("expose headers = %q", w.Header().Get("Access-Control-Expose-Headers"))
	}

	img, err := imaging.Decode(w.Body.Bytes())
	if err != nil {
		t.Fatalf("output does not decode: %v", err)
	}
	if size := img.Bounds().Size(); size.X != 10 || size.Y != 5 {
		t.Errorf("output size = %v, want 10x5", size)
	}
}

func TestCompress_PNGDefaults(t *testing.T) {
	s, _ := newTestServer(t, &fakeProcessor{}, 0)
	src := encodeTestPNG(t, 40, 20)

	w := serve(s, newCompressRequest(t, "/api/compress", src, "image/png", map[string]string{"format": "png"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("X-Quality"); got != "0.8" {
		t.Errorf("X-Quality = %q, want 0.8", got)
	}
	if got := w.Header().Get("X-Compressed-Width"); got != "40" {
		t.Errorf("X-Compressed-Width = %q, want 40", got)
	}
}

func TestCompress_SniffsOctetStream(t *testing.T) {
	s, _ := newTestServer(t, &fakeProcessor{}, 0)
	w := serve(s, newCompressRequest(t, "/compress", encodeTestPNG(t, 8, 8), "application/octet-stream", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestCompress_Validation(t *testing.T) {
	src := encodeTestPNG(t, 8, 8)

	tests := []struct {
		name    string
		file    []byte
		ctype   string
		fields  map[string]string
		wantErr string
	}{
		{"no file", nil, "", nil, "No file provided"},
		{"text file", []byte("hello"), "text/plain", nil, "Invalid file type"},
		{"quality too low", src, "image/png", map[string]string{"quality": "0.05"}, "Quality must be"},
		{"quality too high", src, "image/png", map[string]string{"quality": "1.5"}, "Quality must be"},
		{"quality not a number", src, "image/png", map[string]string{"quality": "abc"}, "Quality must be"},
		{"max width zero", src, "image/png", map[string]string{"maxWidth": "0"}, "maxWidth must be"},
		{"max width too large", src, "image/png", map[string]string{"maxWidth": "10001"}, "maxWidth must be"},
		{"max width not a number", src, "image/png", map[string]string{"maxWidth": "x"}, "maxWidth must be"},
		{"max height negative", src, "image/png", map[string]string{"maxHeight": "-1"}, "maxHeight must be"},
		{"unknown format", src, "image/png", map[string]string{"format": "gif"}, "Format must be one of"},
		{"webp output", src, "image/png", map[string]string{"format": "webp"}, "WebP output is not supported"},
		{"undecodable image", []byte("not really a png"), "image/png", nil, "failed to decode image"},
	}

	s, _ := newTestServer(t, &fakeProcessor{}, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, newCompressRequest(t, "/compress", tt.file, tt.ctype, tt.fields))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			body := decodeBody(t, w)
			if body["success"] != false {
				t.Errorf("success = %v", body["success"])
			}
			if msg, _ := body["error"].(string); !strings.Contains(msg, tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", msg, tt.wantErr)
			}
		})
	}
}

func TestCompress_FileTooLarge(t *testing.T) {
	s, _ := newTestServer(t, &fakeProcessor{}, 0)
	big := make([]byte, compressMaxFileBytes+1)
	copy(big, encodeTestPNG(t, 2, 2))

	w := serve(s, newCompressRequest(t, "/compress", big, "image/png", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if msg, _ := decodeBody(t, w)["error"].(string); !strings.Contains(msg, "File size too large") {
		t.Errorf("error = %q", msg)
	}
}

func TestCompress_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, &fakeProcessor{}, 0)
	for _, path := range []string{"/compress", "/api/compress"} {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			w := do(t, s, method, path, "")
			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("%s %s status = %d", method, path, w.Code)
				continue
			}
			if msg, _ := decodeBody(t, w)["error"].(string); msg != errMethodNotAllowed {
				t.Errorf("%s %s error = %q", method, path, msg)
			}
			if got := w.Header().Get("Allow"); got != http.MethodPost {
				t.Errorf("%s %s Allow = %q", method, path, got)
			}
		}
	}
}

package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ironsheep/photobox/internal/imaging"
	"github.com/ironsheep/photobox/internal/worker"
)

// Compression limits.
const (
	compressMaxFileBytes = 20 << 20
	compressMaxSide      = 10000
	compressFormOverhead = 1 << 20
	defaultQuality       = 0.8
)

const errMethodNotAllowed = "Method not allowed. Use POST to compress images."

// compressTypes are the upload content types /compress accepts.
var compressTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/bmp":  true,
}

// compressHeaders carry the result metadata; browsers only expose them to
// scripts when listed in Access-Control-Expose-Headers.
var compressHeaders = []string{
	"X-Original-Size", "X-Original-Width", "X-Original-Height",
	"X-Compressed-Size", "X-Compressed-Width", "X-Compressed-Height",
	"X-Compression-Ratio", "X-Quality", "X-Format",
}

// compressRequest is a validated /compress form.
type compressRequest struct {
	data []byte
	opts imaging.CompressOptions
}

// handleCompress resizes and re-encodes an uploaded image. The form carries
// file, quality (0.1-1.0, default 0.8), maxWidth, maxHeight (1-10000) and
// format (jpeg or png, default jpeg).
func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	req, err := parseCompressForm(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	img, err := imaging.Decode(req.data)
	if err != nil {
		s.writeError(w, r, worker.Invalid("failed to decode image", err))
		return
	}
	res, err := imaging.Compress(img, req.opts)
	if err != nil {
		s.writeError(w, r, worker.Failed("compression failed", err))
		return
	}

	orig := img.Bounds().Size()
	ratio := (1 - float64(len(res.Data))/float64(len(req.data))) * 100

	h := w.Header()
	h.Set("Content-Type", "image/"+req.opts.Format)
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	h.Set("Cache-Control", "no-cache")
	h.Set("Access-Control-Expose-Headers", strings.Join(compressHeaders, ", "))
	h.Set("X-Original-Size", strconv.Itoa(len(req.data)))
	h.Set("X-Original-Width", strconv.Itoa(orig.X))
	h.Set("X-Original-Height", strconv.Itoa(orig.Y))
	h.Set("X-Compressed-Size", strconv.Itoa(len(res.Data)))
	h.Set("X-Compressed-Width", strconv.Itoa(res.Width))
	h.Set("X-Compressed-Height", strconv.Itoa(res.Height))
	h.Set("X-Compression-Ratio", strconv.FormatFloat(ratio, 'f', 1, 64))
	h.Set("X-Quality", strconv.FormatFloat(req.opts.Quality, 'f', -1, 64))
	h.Set("X-Format", req.opts.Format)
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

func (s *Server) handleCompressMethod(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errMethodNotAllowed})
}

// parseCompressForm reads and validates the multipart form. Every failure is
// an InvalidArgument.
func parseCompressForm(w http.ResponseWriter, r *http.Request) (*compressRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, compressMaxFileBytes+compressFormOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrMissingFile):
			return nil, worker.Invalid("No file provided", nil)
		case errors.As(err, &tooLarge):
			return nil, worker.Invalid("File size too large. Maximum size is 20MB.", nil)
		default:
			return nil, worker.Invalid("invalid multipart form", err)
		}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, worker.Invalid("failed to read file", err)
	}

	ctype, _, _ := strings.Cut(header.Header.Get("Content-Type"), ";")
	ctype = strings.TrimSpace(strings.ToLower(ctype))
	if ctype == "" || ctype == "application/octet-stream" {
		ctype = http.DetectContentType(data)
	}
	if !compressTypes[ctype] {
		return nil, worker.Invalid("Invalid file type. Only JPEG, PNG, WebP, GIF, and BMP are supported.", nil)
	}

	if len(data) > compressMaxFileBytes {
		return nil, worker.Invalid("File size too large. Maximum size is 20MB.", nil)
	}

	opts := imaging.CompressOptions{Quality: defaultQuality, Format: imaging.FormatJPEG}

	if v := r.FormValue("quality"); v != "" {
		q, err := strconv.ParseFloat(v, 64)
		if err != nil || q < 0.1 || q > 1.0 {
			return nil, worker.Invalid("Quality must be a number between 0.1 and 1.0", nil)
		}
		opts.Quality = q
	}

	if opts.MaxWidth, err = parseSide(r.FormValue("maxWidth"), "maxWidth"); err != nil {
		return nil, err
	}
	if opts.MaxHeight, err = parseSide(r.FormValue("maxHeight"), "maxHeight"); err != nil {
		return nil, err
	}

	switch f := r.FormValue("format"); f {
	case "", imaging.FormatJPEG:
	case imaging.FormatPNG:
		opts.Format = f
	case "webp":
		return nil, worker.Invalid("WebP output is not supported; use jpeg or png", nil)
	default:
		return nil, worker.Invalid("Format must be one of: jpeg, png, webp", nil)
	}

	return &compressRequest{data: data, opts: opts}, nil
}

// parseSide parses an optional maxWidth or maxHeight; "" is 0, unbounded.
func parseSide(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 || n > compressMaxSide {
		return 0, worker.Invalid(fmt.Sprintf("%s must be a positive number between 1 and %d", name, compressMaxSide), nil)
	}
	return n, nil
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ironsheep/photobox/internal/imaging"
	"github.com/ironsheep/photobox/internal/worker"
)

const errNoImage = "No image data provided"

// errorBody is the JSON body of a failed request.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// imageRequest is the JSON body of the image routes.
type imageRequest struct {
	ImageData  string `json:"image_data"`
	NewBgColor string `json:"new_bg_color"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "PhotoBox image service: POST /remove-background or /ocr",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "photobox",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ready := s.proc.Ready(r.Context())
	status := http.StatusOK
	if !ready.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, ready)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "Not Found",
		"path":  r.URL.Path,
	})
}

func (s *Server) handleRemoveBackground(w http.ResponseWriter, r *http.Request) {
	req, data, ok := s.decodeImageRequest(w, r)
	if !ok {
		return
	}

	color := req.NewBgColor
	if color == "" {
		color = imaging.White.Hex()
	}

	png, err := s.proc.RemoveBackground(r.Context(), data, color)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Content-Disposition", `attachment; filename="processed-image.png"`)
	h.Set("Cache-Control", "no-cache")
	h.Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	_, data, ok := s.decodeImageRequest(w, r)
	if !ok {
		return
	}

	res, err := s.proc.ExtractText(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeImageRequest reads the JSON body and decodes image_data. On failure
// it writes a 400 and returns false.
func (s *Server) decodeImageRequest(w http.ResponseWriter, r *http.Request) (*imageRequest, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			s.writeError(w, r, worker.Invalid(errNoImage, nil))
		case errors.As(err, &tooLarge):
			s.writeError(w, r, worker.Invalid("request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes", nil))
		default:
			s.writeError(w, r, worker.Invalid("invalid JSON body", err))
		}
		return nil, nil, false
	}

	if req.ImageData == "" {
		s.writeError(w, r, worker.Invalid(errNoImage, nil))
		return nil, nil, false
	}

	data, err := imaging.DecodeBase64(req.ImageData)
	if err != nil {
		if errors.Is(err, imaging.ErrEmptyPayload) {
			s.writeError(w, r, worker.Invalid(errNoImage, nil))
		} else {
			s.writeError(w, r, worker.Invalid("", err))
		}
		return nil, nil, false
	}
	return &req, data, true
}

// writeError writes err as JSON with the status for its kind.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := worker.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case worker.InvalidArgument:
		status = http.StatusBadRequest
	case worker.NotFound:
		status = http.StatusNotFound
	}

	s.log.WithField("request_id", RequestID(r.Context())).
		WithField("kind", kind.String()).
		WithError(err).Debug("request error")
	writeJSON(w, status, errorBody{Success: false, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Package function adapts PhotoBox to API-gateway style serverless events.
//
// The handler answers health checks and CORS preflights and validates the
// image routes. It does not run the models: the image routes return canned
// results so the deployment can be smoke-tested without the Python stack.
package function

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ironsheep/photobox/internal/imaging"
	"github.com/ironsheep/photobox/internal/server"
	"github.com/sirupsen/logrus"
)

// Canned results of the image routes.
const (
	MockOCRText         = "OCR test succeeded - this is a mocked recognition result"
	MockOCRConfidence   = 0.95
	MockRemoveBGMessage = "Background removal test succeeded"
)

const errNoImage = "No image data provided"

// Event is an HTTP-triggered invocation.
type Event struct {
	HTTPMethod string `json:"httpMethod"`
	Path       string `json:"path"`

	// Body is either a JSON string holding the request JSON, the request
	// object itself, or absent.
	Body json.RawMessage `json:"body,omitempty"`
}

// Response is the reply handed back to the gateway.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// Handler routes events.
type Handler struct {
	Log logrus.FieldLogger
}

// Handle answers one event. It never returns an error: failures become
// 4xx and 5xx responses.
func (h *Handler) Handle(ctx context.Context, ev Event) (resp Response) {
	log := h.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	defer func() {
		if v := recover(); v != nil {
			log.WithField("panic", v).Error("event handler panicked")
			resp = jsonResponse(500, baseHeaders(), map[string]string{"error": fmt.Sprint(v)})
		}
	}()

	if ev.HTTPMethod == "OPTIONS" {
		return Response{StatusCode: 200, Headers: preflightHeaders(), Body: ""}
	}

	doc, err := parseBody(ev.Body)
	if err != nil {
		log.WithError(err).Warn("unparseable event body")
		return jsonResponse(500, baseHeaders(), map[string]string{"error": err.Error()})
	}

	method := ev.HTTPMethod
	if method == "" {
		method = "POST"
	}
	path := ev.Path
	if path == "" {
		path = "/"
	}
	log.WithFields(logrus.Fields{"method": method, "path": path}).Debug("event received")

	switch {
	case path == "/" || path == "/health":
		return jsonResponse(200, baseHeaders(), map[string]string{
			"status":  "healthy",
			"message": "PhotoBox API is running",
			"path":    path,
			"method":  method,
		})
	case strings.HasSuffix(path, "/ocr"):
		return withFields(doc, handleOCR)
	case strings.HasSuffix(path, "/remove-background"):
		return withFields(doc, handleRemoveBackground)
	default:
		headers := baseHeaders()
		headers["Access-Control-Allow-Methods"] = server.CORSAllowMethods
		headers["Access-Control-Allow-Headers"] = server.CORSAllowHeaders
		return jsonResponse(404, headers, map[string]string{"error": "Not Found", "path": path})
	}
}

func handleOCR(body map[string]json.RawMessage) Response {
	if !present(body["image"]) {
		return noImage()
	}
	return jsonResponse(200, baseHeaders(), map[string]interface{}{
		"success":    true,
		"text":       MockOCRText,
		"confidence": MockOCRConfidence,
	})
}

func handleRemoveBackground(body map[string]json.RawMessage) Response {
	if !present(body["image"]) {
		return noImage()
	}

	// An explicit value is echoed as sent, whatever its type.
	color, ok := body["backgroundColor"]
	if !ok {
		color = json.RawMessage(`"` + imaging.White.Hex() + `"`)
	}
	return jsonResponse(200, baseHeaders(), map[string]interface{}{
		"success":         true,
		"message":         MockRemoveBGMessage,
		"backgroundColor": color,
	})
}

func noImage() Response {
	return jsonResponse(400, baseHeaders(), map[string]interface{}{
		"success": false,
		"error":   errNoImage,
	})
}

// withFields hands the fields of an object body to h. Any other body is a
// 500, as the image routes cannot read it.
func withFields(doc json.RawMessage, h func(map[string]json.RawMessage) Response) Response {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil || fields == nil {
		return jsonResponse(500, baseHeaders(), map[string]interface{}{
			"success": false,
			"error":   "invalid body: not a JSON object",
		})
	}
	return h(fields)
}

// parseBody returns the JSON document an event carries. A body that is
// itself falsy (absent, null, false, 0, or an empty string, array or object)
// reads as {}; a string body is parsed as JSON; anything else is taken as
// is. Only malformed JSON is an error.
func parseBody(raw json.RawMessage) (json.RawMessage, error) {
	if !present(raw) {
		return json.RawMessage("{}"), nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("invalid body: %w", err)
		}
		raw = json.RawMessage(s)
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid body: %w", err)
	}
	return raw, nil
}

// present reports whether v holds a truthy value: anything but null, false,
// numeric zero, or an empty string, array or object.
func present(v json.RawMessage) bool {
	if len(bytes.TrimSpace(v)) == 0 {
		return false
	}
	var x interface{}
	if err := json.Unmarshal(v, &x); err != nil {
		return true
	}
	switch t := x.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	}
	return true
}

func baseHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                "application/json",
		"Access-Control-Allow-Origin": server.CORSAllowOrigin,
	}
}

func preflightHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  server.CORSAllowOrigin,
		"Access-Control-Allow-Methods": server.CORSAllowMethods,
		"Access-Control-Allow-Headers": server.CORSAllowHeaders,
		"Access-Control-Max-Age":       server.CORSMaxAge,
	}
}

func jsonResponse(status int, headers map[string]string, v interface{}) Response {
	b, err := json.Marshal(v)
	if err != nil {
		return Response{
			StatusCode: 500,
			Headers:    baseHeaders(),
			Body:       `{"error":"failed to encode response"}`,
		}
	}
	return Response{StatusCode: status, Headers: headers, Body: string(b)}
}

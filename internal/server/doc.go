// Package server implements the PhotoBox HTTP service.
//
// # Routes
//
//   - GET /: service banner
//   - GET /health: liveness, independent of model availability
//   - GET /ready: initializes the model backends and reports their state
//     (200 when both are usable, 503 otherwise)
//   - POST /remove-background: {"image_data", "new_bg_color"} to a PNG
//     attachment
//   - POST /ocr: {"image_data"} to {"success", "text", "confidence"}
//   - POST /compress, POST /api/compress: multipart form (file, quality,
//     maxWidth, maxHeight, format) to a resized JPEG or PNG, with the sizes
//     in X-Original-* and X-Compressed-* headers. Other methods get 405.
//
// OPTIONS on any path answers the CORS preflight. Any other path gets a
// JSON 404.
//
// # Errors
//
// Failures are always JSON, {"success": false, "error": "..."}, with the
// status taken from the worker error kind:
//
//   - InvalidArgument: 400
//   - NotFound: 404
//   - DependencyMissing, ProcessingFailure: 500
//
// # Usage
//
//	srv := server.New(runner, server.Options{Log: log})
//	if err := srv.Run(ctx, ":8000"); err != nil {
//	    log.Fatal(err)
//	}
package server

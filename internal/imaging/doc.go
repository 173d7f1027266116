// Package imaging provides the image codec helpers shared by the PhotoBox workers.
//
// This package implements the small set of pixel-level operations the service
// needs around its pretrained models: decoding client payloads, parsing
// background colors, compositing a segmented foreground over a solid color,
// and encoding the result as PNG. All operations work with standard Go
// image.Image types; the concrete type handed back by decoding is always
// *image.NRGBA so callers never need to care about the source color model.
//
// # Payloads
//
// Client images arrive as base64 strings. A data-URL prefix such as
// "data:image/png;base64," is stripped before decoding. Both padded and
// unpadded alphabets are accepted, in standard and URL-safe form.
//
// # Supported Formats
//
// Decoding recognizes PNG, JPEG, GIF, BMP, TIFF and WebP. JPEG EXIF
// orientation is applied so phone photos come out upright. Encoding always
// produces PNG.
//
// # Color Representation
//
// Background colors are parsed from "#RGB" or "#RRGGBB" (the leading '#' is
// optional) into RGBColor with 8-bit components. Three-digit forms expand each
// digit, so "#abc" is "#aabbcc".
//
// # Compositing
//
// Composite implements the standard "over" operator against an opaque
// background:
//
//	out = fg*alpha + bg*(1-alpha)
//
// and the result is always fully opaque.
//
// # Thread Safety
//
// Every function in this package is stateless and safe for concurrent use.
package imaging

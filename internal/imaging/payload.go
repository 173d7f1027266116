package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyPayload is returned when a payload holds no image data.
var ErrEmptyPayload = errors.New("no image data provided")

// payloadEncodings are tried in order; browsers send StdEncoding, some
// clients strip padding or use the URL-safe alphabet.
var payloadEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// StripDataURL removes a "data:<mime>;base64," prefix from s.
//
// Strings that do not start with "data:" are returned unchanged. A data URL
// without a comma has no payload and yields an empty string.
func StripDataURL(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	_, payload, found := strings.Cut(s, ",")
	if !found {
		return ""
	}
	return payload
}

// DecodeBase64 decodes an image payload, stripping any data-URL prefix first.
//
// Returns ErrEmptyPayload when nothing is left to decode, or an error
// wrapping the standard-encoding failure when no alphabet accepts the input.
func DecodeBase64(s string) ([]byte, error) {
	payload := strings.TrimSpace(StripDataURL(strings.TrimSpace(s)))
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	var firstErr error
	for _, enc := range payloadEncodings {
		data, err := enc.DecodeString(payload)
		if err == nil {
			if len(data) == 0 {
				return nil, ErrEmptyPayload
			}
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("invalid base64 data: %w", firstErr)
}

// EncodeBase64 encodes raw image bytes with the standard padded alphabet.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

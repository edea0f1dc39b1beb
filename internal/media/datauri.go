// Package media decodes recipe images from their transport form and stores
// them through an ImageStore (local filesystem or S3).
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidImage is returned for malformed, empty, oversized or
// unsupported image payloads.
var ErrInvalidImage = errors.New("invalid image")

// Image is a decoded image payload.
type Image struct {
	Data        []byte
	Ext         string // canonical extension without dot, e.g. "png"
	ContentType string
}

// allowed maps accepted data-URI subtypes to their canonical extension.
var allowed = map[string]string{
	"png":  "png",
	"jpeg": "jpg",
	"jpg":  "jpg",
	"gif":  "gif",
	"webp": "webp",
}

// DecodeDataURI parses "data:image/<ext>;base64,<payload>". maxBytes caps
// the decoded size; zero or less disables the cap.
func DecodeDataURI(s string, maxBytes int) (*Image, error) {
	s = strings.TrimSpace(s)
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: expected data:image/<type>;base64,<payload>", ErrInvalidImage)
	}
	subtype := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(header, "data:image/"), ";base64"))
	ext, ok := allowed[subtype]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported image type %q", ErrInvalidImage, subtype)
	}

	// Guard before decoding: base64 inflates by 4/3.
	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+3 {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidImage, maxBytes)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 payload", ErrInvalidImage)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidImage, maxBytes)
	}
	return &Image{Data: data, Ext: ext, ContentType: "image/" + contentSubtype(ext)}, nil
}

func contentSubtype(ext string) string {
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}

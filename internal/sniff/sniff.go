// Package sniff guesses a media type from the leading bytes of a file.
// The result is best-effort metadata, never used for access decisions.
package sniff

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const fallbackMediaType = "application/octet-stream"

// Sniffer maps a byte prefix to a media type.
type Sniffer interface {
	FromBuffer(prefix []byte) string
}

// Magic sniffs with content signatures.
type Magic struct{}

// FromBuffer returns the bare media type (no parameters) detected in prefix.
func (Magic) FromBuffer(prefix []byte) string {
	if len(prefix) == 0 {
		return ""
	}
	detected := mimetype.Detect(prefix).String()
	mediaType, _, err := mime.ParseMediaType(detected)
	if err != nil || strings.TrimSpace(mediaType) == "" {
		return fallbackMediaType
	}
	return strings.ToLower(mediaType)
}

var _ Sniffer = Magic{}

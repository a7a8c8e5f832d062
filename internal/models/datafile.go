package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Datafile is the logical file a set of replicas are copies of. It carries
// the expected identity of the bytes independent of where they live.
type Datafile struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       string    `json:"size,omitempty"`
	MD5Sum     string    `json:"md5sum,omitempty"`
	SHA512Sum  string    `json:"sha512sum,omitempty"`
	Mimetype   string    `json:"mimetype,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// HasChecksum reports whether at least one checksum is recorded.
func (d *Datafile) HasChecksum() bool {
	return d != nil && (strings.TrimSpace(d.MD5Sum) != "" || strings.TrimSpace(d.SHA512Sum) != "")
}

// ExpectedSize parses the recorded size. ok is false when no size is recorded.
func (d *Datafile) ExpectedSize() (size int64, ok bool, err error) {
	if d == nil {
		return 0, false, nil
	}
	raw := strings.TrimSpace(d.Size)
	if raw == "" {
		return 0, false, nil
	}
	size, err = strconv.ParseInt(raw, 10, 64)
	if err != nil || size < 0 {
		return 0, true, fmt.Errorf("invalid datafile size %q", d.Size)
	}
	return size, true, nil
}

// NormalizeChecksum lower-cases and trims a hex digest.
func NormalizeChecksum(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateChecksum checks that raw is empty or a hex digest of hexLen characters.
func ValidateChecksum(raw string, hexLen int) error {
	value := NormalizeChecksum(raw)
	if value == "" {
		return nil
	}
	if len(value) != hexLen {
		return fmt.Errorf("checksum must be %d hex characters", hexLen)
	}
	for _, ch := range value {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return fmt.Errorf("checksum contains non-hex character %q", ch)
		}
	}
	return nil
}

const (
	MD5HexLen    = 32
	SHA512HexLen = 128
)

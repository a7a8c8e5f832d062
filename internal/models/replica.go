package models

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// MaxProtocolLength bounds the protocol identifier stored on a replica.
const MaxProtocolLength = 10

// Replica records one physical copy of a datafile's bytes.
//
// Protocol names a non-standard storage provider; empty means the default
// local storage or an explicit file:// URL. Verified is true only once the
// bytes were read end-to-end and matched every recorded checksum and size.
type Replica struct {
	ID         string    `json:"id"`
	DatafileID string    `json:"datafile_id"`
	URL        string    `json:"url"`
	Protocol   string    `json:"protocol,omitempty"`
	Verified   bool      `json:"verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SetURL points the replica at a new location. A verified flag never
// survives a location change.
func (r *Replica) SetURL(url string) {
	if r.URL == url {
		return
	}
	r.URL = url
	r.Verified = false
}

// ParseProtocol normalizes a replica protocol identifier.
func ParseProtocol(raw string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if len(value) > MaxProtocolLength {
		return "", fmt.Errorf("protocol must be at most %d characters", MaxProtocolLength)
	}
	for _, ch := range value {
		if (ch < 'a' || ch > 'z') && (ch < '0' || ch > '9') && ch != '-' && ch != '_' {
			return "", fmt.Errorf("invalid protocol: %s", value)
		}
	}
	return value, nil
}

// ValidateReplicaURL rejects blank or oversized replica URLs, and relative
// names that resolve to the file store root itself.
func ValidateReplicaURL(raw string) error {
	value := strings.TrimSpace(raw)
	if value == "" {
		return fmt.Errorf("replica url is required")
	}
	if len(value) > 400 {
		return fmt.Errorf("replica url must be at most 400 characters")
	}
	if !strings.Contains(value, "://") && path.Clean(value) == "." {
		return fmt.Errorf("replica url %q does not name a file", value)
	}
	return nil
}

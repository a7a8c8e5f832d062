// Package location classifies replica URLs and resolves them to local paths
// or fetchable remote URLs.
package location

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"replicas/internal/blobstore"
	"replicas/internal/models"
)

// ErrUnresolvable is returned when a replica's location cannot be turned
// into something an opener understands.
var ErrUnresolvable = errors.New("unresolvable replica location")

// Settings is the configuration the resolver reads. A nil Settings behaves
// as "no file store root and no registered download providers".
type Settings interface {
	FileStoreRoot() (string, bool)
	ProviderProtocols() []string
}

var remoteSchemes = map[string]struct{}{
	"http":  {},
	"https": {},
	"ftp":   {},
	"file":  {},
}

// Location is a resolved, immutable view of where a replica's bytes live.
type Location struct {
	// Local is true when Name is opened through local storage.
	Local bool
	// Name is the replica URL relative to the storage root (local only).
	Name string
	// Path is the absolute filesystem path, when one exists.
	Path string
	// URL is the fully qualified URL for the bytes.
	URL string
}

// Resolver interprets replica URLs against configuration.
type Resolver struct {
	settings Settings
}

// NewResolver constructs a Resolver.
func NewResolver(settings Settings) *Resolver {
	return &Resolver{settings: settings}
}

// IsLocal reports whether the replica lives in the default local storage.
func (r *Resolver) IsLocal(replica models.Replica) bool {
	protocol := strings.TrimSpace(replica.Protocol)
	if protocol != "" {
		for _, p := range r.providerProtocols() {
			if strings.EqualFold(p, protocol) {
				return false
			}
		}
	}
	return schemeOf(replica.URL) == ""
}

// ActualURL returns a URL an opener can fetch. ok is false when the scheme
// is unsupported or no local path can be built.
func (r *Resolver) ActualURL(replica models.Replica) (string, bool) {
	if r.IsLocal(replica) {
		path := r.AbsoluteFilepath(replica)
		if path == "" {
			return "", false
		}
		return "file://" + path, true
	}
	if _, ok := remoteSchemes[schemeOf(replica.URL)]; ok {
		return replica.URL, true
	}
	return "", false
}

// AbsoluteFilepath returns the filesystem path of the replica, or "" when
// the replica is not stored on a local filesystem, no root is configured,
// or the URL would escape the root.
func (r *Resolver) AbsoluteFilepath(replica models.Replica) string {
	path, _ := r.absoluteFilepath(replica)
	return path
}

func (r *Resolver) absoluteFilepath(replica models.Replica) (string, error) {
	switch schemeOf(replica.URL) {
	case "":
		root, ok := r.fileStoreRoot()
		if !ok {
			return "", fmt.Errorf("file store root is not configured")
		}
		path, err := blobstore.SafeJoin(root, pathOf(replica.URL))
		if err != nil {
			return "", err
		}
		if abs, err := filepath.Abs(root); err == nil && path == abs {
			return "", fmt.Errorf("%q names the file store root", replica.URL)
		}
		return path, nil
	case "file":
		return pathOf(replica.URL), nil
	default:
		return "", fmt.Errorf("scheme %q is not a local path", schemeOf(replica.URL))
	}
}

// Resolve captures everything needed to open the replica later.
func (r *Resolver) Resolve(replica models.Replica) (Location, error) {
	if r.IsLocal(replica) {
		path, err := r.absoluteFilepath(replica)
		if err != nil {
			return Location{}, fmt.Errorf("%w: %s: %v", ErrUnresolvable, replica.URL, err)
		}
		return Location{Local: true, Name: pathOf(replica.URL), Path: path, URL: "file://" + path}, nil
	}
	actual, ok := r.ActualURL(replica)
	if !ok {
		return Location{}, fmt.Errorf("%w: unsupported scheme in %s", ErrUnresolvable, replica.URL)
	}
	loc := Location{URL: actual}
	if schemeOf(actual) == "file" {
		loc.Path = pathOf(actual)
	}
	return loc, nil
}

func (r *Resolver) fileStoreRoot() (string, bool) {
	if r == nil || r.settings == nil {
		return "", false
	}
	return r.settings.FileStoreRoot()
}

func (r *Resolver) providerProtocols() []string {
	if r == nil || r.settings == nil {
		return nil
	}
	return r.settings.ProviderProtocols()
}

// schemeOf returns the lower-cased URL scheme, or "" for bare paths.
func schemeOf(raw string) string {
	i := strings.IndexByte(raw, ':')
	if i <= 0 {
		return ""
	}
	scheme := raw[:i]
	for j, ch := range scheme {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		case j > 0 && (ch >= '0' && ch <= '9' || ch == '+' || ch == '-' || ch == '.'):
		default:
			return ""
		}
	}
	return strings.ToLower(scheme)
}

// pathOf returns the path component of raw without query or fragment.
func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Path
}

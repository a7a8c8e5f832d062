// Package opener fetches replica bytes from file, HTTP(S), FTP and
// S3-backed download providers behind a single Open(url) call.
package opener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"replicas/internal/config"
)

// ErrUnsupportedScheme is returned for URLs no registered opener handles.
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// Opener returns a stream for a fully qualified URL.
type Opener interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, rawURL string) (io.ReadCloser, error)

func (f OpenerFunc) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return f(ctx, rawURL)
}

type prefixRoute struct {
	prefix string
	opener Opener
}

// Mux dispatches to provider openers by URL prefix, then by scheme.
type Mux struct {
	prefixes []prefixRoute
	schemes  map[string]Opener
	logger   *slog.Logger
}

// NewMux creates an empty Mux.
func NewMux(logger *slog.Logger) *Mux {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mux{schemes: map[string]Opener{}, logger: logger}
}

// HandleScheme registers o for every URL with scheme.
func (m *Mux) HandleScheme(scheme string, o Opener) {
	m.schemes[strings.ToLower(scheme)] = o
}

// HandlePrefix registers o for URLs starting with prefix. Longer prefixes win.
func (m *Mux) HandlePrefix(prefix string, o Opener) {
	m.prefixes = append(m.prefixes, prefixRoute{prefix: prefix, opener: o})
	sort.SliceStable(m.prefixes, func(i, j int) bool {
		return len(m.prefixes[i].prefix) > len(m.prefixes[j].prefix)
	})
}

// Open implements Opener.
func (m *Mux) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	for _, route := range m.prefixes {
		if strings.HasPrefix(rawURL, route.prefix) {
			m.logger.Debug("opening via provider", "url", rawURL, "prefix", route.prefix)
			return route.opener.Open(ctx, rawURL)
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	o, ok := m.schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return o.Open(ctx, rawURL)
}

// FileOpener opens file:// URLs from the local filesystem.
type FileOpener struct{}

func (FileOpener) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Path == "" {
		return nil, fmt.Errorf("file url %q has no path", rawURL)
	}
	return os.Open(u.Path)
}

// New wires the default mux from configuration: file, http, https and ftp
// schemes plus one prefix route per S3 download provider.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Mux, error) {
	timeout := config.DefaultRemoteHTTPTimeout
	userAgent := config.DefaultRemoteUserAgent
	var providers []config.DownloadProvider
	if cfg != nil {
		timeout = cfg.HTTPTimeout()
		userAgent = cfg.Remote.UserAgent
		providers = cfg.DownloadProviders
	}

	m := NewMux(logger)
	httpOpener := NewHTTPOpener(timeout, userAgent)
	m.HandleScheme("file", FileOpener{})
	m.HandleScheme("http", httpOpener)
	m.HandleScheme("https", httpOpener)
	m.HandleScheme("ftp", NewFTPOpener(timeout))

	for _, p := range providers {
		if p.Kind != config.ProviderKindS3 {
			continue
		}
		s3o, err := NewS3Opener(ctx, S3Config{
			URLPrefix: p.URLPrefix,
			Bucket:    p.Bucket,
			Region:    p.Region,
			Endpoint:  p.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("download provider %q: %w", p.Protocol, err)
		}
		m.HandlePrefix(p.URLPrefix, s3o)
	}
	return m, nil
}

const defaultDialTimeout = 30 * time.Second

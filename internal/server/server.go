package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"replicas/internal/api"
	"replicas/internal/replica"
	"replicas/internal/store"
)

const (
	apiTokenEnvKey           = "REPLICAS_API_TOKEN"
	allowRemoteEnvKey        = "REPLICAS_ALLOW_REMOTE"
	readHeaderTimeout        = 5 * time.Second
	idleTimeout              = 60 * time.Second
	ingestConcurrencyLimit   = 1
	defaultVerifyConcurrency = 4
)

// Server wraps HTTP handlers for the replicas API.
type Server struct {
	addr          string
	store         store.CatalogStore
	catalog       *CatalogService
	replicas      *replica.Service
	gatherer      prometheus.Gatherer
	info          api.InfoResponse
	logger        *slog.Logger
	apiToken      string
	verifyLimiter chan struct{}
	ingestLimiter chan struct{}
}

// New creates a new server instance.
func New(addr string, catalogStore store.CatalogStore, replicas *replica.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		addr:          addr,
		store:         catalogStore,
		catalog:       NewCatalogService(catalogStore, replicas.Resolver()),
		replicas:      replicas,
		gatherer:      prometheus.DefaultGatherer,
		logger:        logger,
		apiToken:      strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
		verifyLimiter: make(chan struct{}, defaultVerifyConcurrency),
		ingestLimiter: make(chan struct{}, ingestConcurrencyLimit),
	}
}

// SetGatherer sets the registry served on /metrics.
func (s *Server) SetGatherer(g prometheus.Gatherer) {
	if g != nil {
		s.gatherer = g
	}
}

// SetVerifyConcurrency bounds concurrent verifications.
func (s *Server) SetVerifyConcurrency(n int) {
	if n <= 0 {
		n = defaultVerifyConcurrency
	}
	s.verifyLimiter = make(chan struct{}, n)
}

// SetInfo records the static facts reported by /v1/info.
func (s *Server) SetInfo(dbPath, fileStorePath string, providers []string) {
	s.info = api.InfoResponse{DBPath: dbPath, FileStorePath: fileStorePath, Providers: providers}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withAuth(s.routes()))
}

// ListenAndServe starts the HTTP server. Verification and content transfer
// are bounded by replica size, so only header and idle timeouts apply.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server.ListenAndServe()
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

// waitLimiter blocks for a slot until ctx is done.
func (s *Server) waitLimiter(ctx context.Context, limiter chan struct{}) error {
	if limiter == nil {
		return nil
	}
	select {
	case limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

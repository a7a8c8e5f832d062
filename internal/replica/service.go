// Package replica reads, verifies and deletes the physical copies of
// datafiles.
package replica

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"replicas/internal/blobstore"
	"replicas/internal/location"
	"replicas/internal/models"
	"replicas/internal/opener"
	"replicas/internal/sniff"
	"replicas/internal/store"
)

// Repository persists verification outcomes and new registrations.
type Repository interface {
	store.VerificationStore
	store.RegistrationStore
}

// Getter opens a stream over a replica's bytes. The location it reads from
// is fixed when the Getter is created.
type Getter func(ctx context.Context) (io.ReadCloser, error)

// Service reads and verifies replicas.
type Service struct {
	resolver *location.Resolver
	storage  blobstore.Storage
	opener   opener.Opener
	repo     Repository
	sniffer  sniff.Sniffer
	metrics  *Metrics
	logger   *slog.Logger
	locks    KeyedMutex
}

// NewService constructs a Service. storage may be nil when no file store is
// configured; local replicas then fail to resolve.
func NewService(resolver *location.Resolver, storage blobstore.Storage, op opener.Opener, repo Repository, logger *slog.Logger) *Service {
	if resolver == nil {
		resolver = location.NewResolver(nil)
	}
	return &Service{
		resolver: resolver,
		storage:  storage,
		opener:   op,
		repo:     repo,
		sniffer:  sniff.Magic{},
		logger:   logger,
	}
}

// SetSniffer replaces the mimetype sniffer used for backfill.
func (s *Service) SetSniffer(sniffer sniff.Sniffer) {
	if sniffer != nil {
		s.sniffer = sniffer
	}
}

// SetMetrics attaches Prometheus collectors.
func (s *Service) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Resolver returns the location resolver the service uses.
func (s *Service) Resolver() *location.Resolver {
	return s.resolver
}

// Lock serializes verify, read and delete on one replica id.
func (s *Service) Lock(replicaID string) (unlock func()) {
	return s.locks.Lock(replicaID)
}

func (s *Service) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// GetFileGetter returns a Getter for a verified replica. Unverified
// replicas get ErrNotVerified; callers must verify before trusting bytes.
func (s *Service) GetFileGetter(replica models.Replica) (Getter, error) {
	if !replica.Verified {
		return nil, ErrNotVerified
	}
	return s.getter(replica)
}

// GetFile opens a verified replica. The error distinguishes ErrNotVerified
// from ErrOpenFailure and ErrUnresolvableLocation.
func (s *Service) GetFile(ctx context.Context, replica models.Replica) (io.ReadCloser, error) {
	get, err := s.GetFileGetter(replica)
	if err != nil {
		return nil, err
	}
	return get(ctx)
}

// getter resolves the replica now and returns a Getter bound to that
// location. It ignores the verified flag.
func (s *Service) getter(replica models.Replica) (Getter, error) {
	loc, err := s.resolver.Resolve(replica)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvableLocation, err)
	}

	if loc.Local {
		storage := s.storage
		name := loc.Name
		if storage == nil {
			return nil, fmt.Errorf("%w: file store is not configured", ErrUnresolvableLocation)
		}
		return func(ctx context.Context) (io.ReadCloser, error) {
			rc, err := storage.Open(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrOpenFailure, err)
			}
			return rc, nil
		}, nil
	}

	op := s.opener
	rawURL := loc.URL
	if op == nil {
		return nil, fmt.Errorf("%w: no opener for %s", ErrUnresolvableLocation, rawURL)
	}
	return func(ctx context.Context) (io.ReadCloser, error) {
		rc, err := op.Open(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOpenFailure, err)
		}
		return rc, nil
	}, nil
}

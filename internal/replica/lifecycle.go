package replica

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"replicas/internal/digest"
	"replicas/internal/models"
)

// DeleteCompletely removes a local replica's bytes and then its record.
// A failed byte removal is returned as *DeleteError and the record is kept.
// Remote replicas are rejected with ErrRemoteDelete.
func (s *Service) DeleteCompletely(ctx context.Context, replica models.Replica) (err error) {
	defer func() { s.metrics.observeDelete(err) }()

	var filePath string
	if s.resolver.IsLocal(replica) {
		filePath = s.resolver.AbsoluteFilepath(replica)
		if filePath == "" {
			return fmt.Errorf("%w: %s", ErrUnresolvableLocation, replica.URL)
		}
	} else {
		// Only file:// URLs name bytes on this host.
		loc, err := s.resolver.Resolve(replica)
		if err != nil || loc.Path == "" {
			return fmt.Errorf("%w: %s", ErrRemoteDelete, replica.URL)
		}
		filePath = loc.Path
	}
	if s.storage == nil {
		return &DeleteError{Path: filePath, Err: errors.New("file store is not configured")}
	}
	if s.repo == nil {
		return errors.New("replica repository is not configured")
	}

	if err := s.storage.Remove(ctx, filePath); err != nil {
		return &DeleteError{Path: filePath, Err: err}
	}
	if err := s.repo.DeleteReplica(ctx, replica.ID); err != nil {
		return fmt.Errorf("delete replica record %s: %w", replica.ID, err)
	}
	s.log().Info("replica deleted", "replica", replica.ID, "path", filePath)
	return nil
}

// IngestRequest describes bytes to copy into the file store.
type IngestRequest struct {
	DatafileID string
	ReplicaID  string
	Filename   string
	// Name is the path under the file store root. Defaults to Filename.
	Name string
	Body io.ReadCloser
}

// Ingest copies Body into the file store while digesting it, registers a
// datafile carrying the measured size, checksums and mimetype together with
// its first replica, and then verifies that replica from disk.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*models.Datafile, *models.Replica, error) {
	if req.Body == nil {
		return nil, nil, errors.New("ingest body is required")
	}
	if s.storage == nil {
		_ = req.Body.Close()
		return nil, nil, errors.New("file store is not configured")
	}
	if s.repo == nil {
		_ = req.Body.Close()
		return nil, nil, errors.New("replica repository is not configured")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = path.Base(strings.TrimSpace(req.Filename))
	}
	if err := models.ValidateReplicaURL(name); err != nil {
		_ = req.Body.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	staged, err := s.storage.Stage(ctx)
	if err != nil {
		_ = req.Body.Close()
		return nil, nil, fmt.Errorf("stage upload: %w", err)
	}
	sums, err := digest.Compute(ctx, req.Body, staged)
	if err != nil {
		staged.Discard()
		return nil, nil, fmt.Errorf("copy upload: %w", err)
	}
	stored, err := staged.Commit(name)
	if err != nil {
		return nil, nil, fmt.Errorf("store upload: %w", err)
	}

	datafile := &models.Datafile{
		ID:        req.DatafileID,
		Filename:  req.Filename,
		Size:      strconv.FormatInt(sums.Size, 10),
		MD5Sum:    sums.MD5,
		SHA512Sum: sums.SHA512,
		Mimetype:  s.sniffer.FromBuffer(sums.Prefix),
	}
	replica := &models.Replica{ID: req.ReplicaID, URL: name}
	if err := s.repo.CreateDatafileWithReplica(ctx, datafile, replica); err != nil {
		return nil, nil, multierr.Append(
			fmt.Errorf("register upload: %w", err),
			s.storage.Remove(ctx, stored),
		)
	}

	if _, err := s.VerifyDetailed(ctx, replica, datafile, VerifyOptions{}); err != nil {
		return datafile, replica, fmt.Errorf("verify upload: %w", err)
	}
	return datafile, replica, nil
}

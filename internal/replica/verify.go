package replica

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"replicas/internal/digest"
	"replicas/internal/models"
)

// VerifyOptions tune a single verification.
type VerifyOptions struct {
	// Tee receives every byte read, in order.
	Tee io.Writer
	// AllowEmptyChecksums lets a datafile without checksums be verified on
	// size alone.
	AllowEmptyChecksums bool
	// UpdateDatafile backfills size, checksums and a missing mimetype.
	UpdateDatafile bool
}

// Result is the structured outcome of a verification.
type Result struct {
	Reason Reason
	MD5    string
	SHA512 string
	Size   int64
	// BytesRead is false when no stream was obtained.
	BytesRead bool
}

// Verified reports whether the replica was marked verified.
func (r Result) Verified() bool {
	return r.Reason == ReasonOK
}

// Verify reads the replica end to end and marks it verified when its size
// and checksums agree with datafile.
func (s *Service) Verify(ctx context.Context, replica *models.Replica, datafile *models.Datafile, opts VerifyOptions) bool {
	res, _ := s.VerifyDetailed(ctx, replica, datafile, opts)
	return res.Verified()
}

// VerifyDetailed is Verify with the outcome and cause exposed. On any
// failure replica and datafile are left untouched. On success both are
// updated in place after the store commits.
func (s *Service) VerifyDetailed(ctx context.Context, replica *models.Replica, datafile *models.Datafile, opts VerifyOptions) (res Result, err error) {
	if replica == nil || datafile == nil {
		return Result{}, fmt.Errorf("replica and datafile are required")
	}
	defer func() {
		s.metrics.observeVerification(res.Reason, res.Size)
	}()

	logger := s.log().With("replica", replica.ID, "url", replica.URL)

	if !opts.AllowEmptyChecksums && !datafile.HasChecksum() {
		return Result{Reason: ReasonMissingChecksum}, ErrMissingChecksum
	}
	expectedSize, hasSize, err := datafile.ExpectedSize()
	if err != nil {
		return Result{Reason: ReasonSizeMismatch}, fmt.Errorf("%w: %v", ErrSizeMismatch, err)
	}

	get, err := s.getter(*replica)
	if err != nil {
		logger.Warn("replica location cannot be resolved", "error", err)
		return Result{Reason: ReasonUnresolvableLocation}, err
	}
	logger.Info("reading replica for verification")
	src, err := get(ctx)
	if err != nil {
		logger.Warn("replica could not be opened", "error", err)
		return Result{Reason: ReasonOpenFailure}, err
	}

	sums, err := digest.Compute(ctx, src, opts.Tee)
	if err != nil {
		logger.Error("replica read failed", "error", err)
		return Result{Reason: ReasonReadFailure, Size: sums.Size}, fmt.Errorf("%w: %w", ErrReadFailure, err)
	}
	res = Result{MD5: sums.MD5, SHA512: sums.SHA512, Size: sums.Size, BytesRead: true}

	switch {
	case hasSize && sums.Size != expectedSize:
		logger.Error("replica failed size check", "size", sums.Size, "expected", expectedSize)
		res.Reason = ReasonSizeMismatch
		return res, fmt.Errorf("%w: expected %d, got %d", ErrSizeMismatch, expectedSize, sums.Size)
	case !hasSize && datafile.HasChecksum():
		logger.Warn("replica size is missing", "size", sums.Size)
	}

	if expected := models.NormalizeChecksum(datafile.SHA512Sum); expected != "" && expected != sums.SHA512 {
		logger.Error("failed SHA-512 sum check", "sha512sum", sums.SHA512, "expected", expected)
		res.Reason = ReasonSHA512Mismatch
		return res, &ChecksumMismatchError{Kind: ChecksumSHA512, Expected: expected, Actual: sums.SHA512}
	}
	if expected := models.NormalizeChecksum(datafile.MD5Sum); expected != "" && expected != sums.MD5 {
		logger.Error("failed MD5 sum check", "md5sum", sums.MD5, "expected", expected)
		res.Reason = ReasonMD5Mismatch
		return res, &ChecksumMismatchError{Kind: ChecksumMD5, Expected: expected, Actual: sums.MD5}
	}

	verified := *replica
	verified.Verified = true

	var backfill *models.Datafile
	if opts.UpdateDatafile {
		updated := *datafile
		updated.MD5Sum = sums.MD5
		updated.SHA512Sum = sums.SHA512
		updated.Size = strconv.FormatInt(sums.Size, 10)
		if updated.Mimetype == "" && len(sums.Prefix) > 0 {
			updated.Mimetype = s.sniffer.FromBuffer(sums.Prefix)
		}
		backfill = &updated
	}

	if s.repo == nil {
		res.Reason = ReasonStoreFailure
		return res, errors.New("replica repository is not configured")
	}
	if err := s.repo.SaveVerification(ctx, &verified, backfill); err != nil {
		logger.Error("saving verification failed", "error", err)
		res.Reason = ReasonStoreFailure
		return res, fmt.Errorf("save verification: %w", err)
	}

	*replica = verified
	if backfill != nil {
		*datafile = *backfill
	}
	res.Reason = ReasonOK
	logger.Info("replica verified", "datafile", datafile.ID, "size", sums.Size)
	return res, nil
}

package replica

import (
	"errors"
	"fmt"
)

// Reason classifies the outcome of a verification.
type Reason string

const (
	ReasonOK                   Reason = "ok"
	ReasonMissingChecksum      Reason = "missing_checksum"
	ReasonUnresolvableLocation Reason = "unresolvable_location"
	ReasonOpenFailure          Reason = "open_failure"
	ReasonReadFailure          Reason = "read_failure"
	ReasonSizeMismatch         Reason = "size_mismatch"
	ReasonMD5Mismatch          Reason = "checksum_mismatch_md5"
	ReasonSHA512Mismatch       Reason = "checksum_mismatch_sha512"
	ReasonStoreFailure         Reason = "store_failure"
)

var (
	ErrMissingChecksum      = errors.New("datafile has no checksum to verify against")
	ErrUnresolvableLocation = errors.New("replica location cannot be resolved")
	ErrOpenFailure          = errors.New("replica could not be opened")
	ErrReadFailure          = errors.New("replica could not be read")
	ErrSizeMismatch         = errors.New("replica size does not match datafile")
	ErrNotVerified          = errors.New("replica is not verified")
	ErrRemoteDelete         = errors.New("deleting remote replicas is not supported")
	ErrInvalidName          = errors.New("invalid file store name")
)

// ChecksumKind names the digest that failed a comparison.
type ChecksumKind string

const (
	ChecksumMD5    ChecksumKind = "md5"
	ChecksumSHA512 ChecksumKind = "sha512"
)

// ChecksumMismatchError reports a digest that differs from the recorded one.
type ChecksumMismatchError struct {
	Kind     ChecksumKind
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s checksum mismatch: expected %s, got %s", e.Kind, e.Expected, e.Actual)
}

// DeleteError reports a failure to remove a replica's bytes.
type DeleteError struct {
	Path string
	Err  error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete replica bytes %s: %v", e.Path, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

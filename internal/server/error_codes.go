package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidQuery    = 1003
	ErrCodeInvalidID       = 1004
	ErrCodeMissingRequired = 1009
	ErrCodeInvalidChecksum = 1010
	ErrCodeInvalidSize     = 1011
	ErrCodeInvalidURL      = 1012
	ErrCodeInvalidProtocol = 1013

	// Domain state (2xxx)
	ErrCodeDatafileNotFound      = 2001
	ErrCodeReplicaNotFound       = 2002
	ErrCodeDatafileIDExists      = 2101
	ErrCodeConflict              = 2102
	ErrCodeReplicaLocationExists = 2103
	ErrCodeReplicaNotVerified    = 2104
	ErrCodeRemoteDelete          = 2105
	ErrCodeFileExists            = 2106

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal           = 4001
	ErrCodeStoreFailure       = 4002
	ErrCodeDeleteFailed       = 4003
	ErrCodeReplicaUnavailable = 4004
	ErrCodeNotImplemented     = 4005
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeReplicaNotFound
	case 409:
		return ErrCodeConflict
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 501:
		return ErrCodeNotImplemented
	case 502:
		return ErrCodeReplicaUnavailable
	default:
		return 0
	}
}

package api

import "replicas/internal/models"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// ReplicaSpec describes a replica registered alongside a datafile.
type ReplicaSpec struct {
	URL      string `json:"url"`
	Protocol string `json:"protocol,omitempty"`
}

// DatafileCreateRequest registers a datafile and, optionally, its replicas.
type DatafileCreateRequest struct {
	ID        string        `json:"id,omitempty"`
	Filename  string        `json:"filename"`
	Size      string        `json:"size,omitempty"`
	MD5Sum    string        `json:"md5sum,omitempty"`
	SHA512Sum string        `json:"sha512sum,omitempty"`
	Mimetype  string        `json:"mimetype,omitempty"`
	Replicas  []ReplicaSpec `json:"replicas,omitempty"`
}

// DatafileResponse is a datafile with its replicas.
type DatafileResponse struct {
	models.Datafile
	Replicas []ReplicaResponse `json:"replicas,omitempty"`
}

// ReplicaCreateRequest registers a replica of an existing datafile.
type ReplicaCreateRequest struct {
	DatafileID string `json:"datafile_id"`
	URL        string `json:"url"`
	Protocol   string `json:"protocol,omitempty"`
}

// ReplicaUpdateRequest moves a replica. Moving always clears verified.
type ReplicaUpdateRequest struct {
	URL      *string `json:"url,omitempty"`
	Protocol *string `json:"protocol,omitempty"`
}

// ReplicaResponse is a replica with its resolved location.
type ReplicaResponse struct {
	models.Replica
	Local     bool   `json:"local"`
	ActualURL string `json:"actual_url,omitempty"`
}

// VerifyRequest tunes a verification.
type VerifyRequest struct {
	AllowEmptyChecksums bool `json:"allow_empty_checksums,omitempty"`
	UpdateDatafile      bool `json:"update_datafile,omitempty"`
}

// VerifyResponse reports a verification outcome. Failed verifications are
// not HTTP errors; Reason and Error explain them.
type VerifyResponse struct {
	ReplicaID string          `json:"replica_id"`
	Verified  bool            `json:"verified"`
	Reason    string          `json:"reason"`
	Error     string          `json:"error,omitempty"`
	Size      int64           `json:"size,omitempty"`
	MD5Sum    string          `json:"md5sum,omitempty"`
	SHA512Sum string          `json:"sha512sum,omitempty"`
	Datafile  models.Datafile `json:"datafile"`
}

// IngestResponse is the datafile and replica created by an upload.
type IngestResponse struct {
	Datafile models.Datafile `json:"datafile"`
	Replica  models.Replica  `json:"replica"`
}

// InfoResponse describes the running server.
type InfoResponse struct {
	DBPath        string   `json:"db_path"`
	FileStorePath string   `json:"file_store_path,omitempty"`
	SchemaVersion int      `json:"schema_version"`
	Providers     []string `json:"providers"`
}

package store

import (
	"context"

	"replicas/internal/models"
)

// ReplicaFilter narrows ListReplicas.
type ReplicaFilter struct {
	DatafileID string
	Verified   *bool
	Limit      int
	Offset     int
}

// DatafileStore persists logical file records.
type DatafileStore interface {
	DatafileExists(id string) (bool, error)
	CreateDatafile(ctx context.Context, datafile *models.Datafile) error
	GetDatafile(ctx context.Context, id string) (*models.Datafile, error)
	UpdateDatafile(ctx context.Context, datafile *models.Datafile) error
}

// ReplicaStore persists replica records.
type ReplicaStore interface {
	ReplicaExists(id string) (bool, error)
	CreateReplica(ctx context.Context, replica *models.Replica) error
	GetReplica(ctx context.Context, id string) (*models.Replica, error)
	ListReplicas(ctx context.Context, filter ReplicaFilter) ([]models.Replica, error)
	UpdateReplicaLocation(ctx context.Context, id, url, protocol string) error
	DeleteReplica(ctx context.Context, id string) error
}

// VerificationStore commits the outcome of a successful verification.
// The replica flag and any datafile backfill are written in one transaction.
type VerificationStore interface {
	SaveVerification(ctx context.Context, replica *models.Replica, datafile *models.Datafile) error
	DeleteReplica(ctx context.Context, id string) error
}

// RegistrationStore creates a datafile together with its replicas.
type RegistrationStore interface {
	CreateDatafileWithReplica(ctx context.Context, datafile *models.Datafile, replica *models.Replica) error
	CreateDatafileWithReplicas(ctx context.Context, datafile *models.Datafile, replicas []*models.Replica) error
}

// CatalogStore is everything the HTTP server reads and writes.
type CatalogStore interface {
	DatafileStore
	ReplicaStore
	RegistrationStore
	VerificationStore
}

var (
	_ DatafileStore     = (*Store)(nil)
	_ ReplicaStore      = (*Store)(nil)
	_ VerificationStore = (*Store)(nil)
	_ RegistrationStore = (*Store)(nil)
	_ CatalogStore      = (*Store)(nil)
)

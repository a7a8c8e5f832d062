package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"replicas/internal/api"
	"replicas/internal/location"
	"replicas/internal/models"
	"replicas/internal/store"
)

// CatalogService owns datafile and replica registration and lookup.
type CatalogService struct {
	store    store.CatalogStore
	resolver *location.Resolver
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(catalogStore store.CatalogStore, resolver *location.Resolver) *CatalogService {
	if resolver == nil {
		resolver = location.NewResolver(nil)
	}
	return &CatalogService{store: catalogStore, resolver: resolver}
}

// CreateDatafile registers a datafile and any replicas listed with it.
func (c *CatalogService) CreateDatafile(ctx context.Context, req api.DatafileCreateRequest) (api.DatafileResponse, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return api.DatafileResponse{}, badRequestCode(fmt.Errorf("filename is required"), ErrCodeMissingRequired)
	}
	size, err := validateSize(req.Size)
	if err != nil {
		return api.DatafileResponse{}, err
	}
	md5sum, sha512sum, err := validateChecksums(req.MD5Sum, req.SHA512Sum)
	if err != nil {
		return api.DatafileResponse{}, err
	}

	id := strings.TrimSpace(req.ID)
	if id != "" {
		if !validateDatafileID(id) {
			return api.DatafileResponse{}, badRequestCode(fmt.Errorf("invalid datafile id"), ErrCodeInvalidID)
		}
		exists, err := c.store.DatafileExists(id)
		if err != nil {
			return api.DatafileResponse{}, storeFailure(err)
		}
		if exists {
			return api.DatafileResponse{}, conflictCode(fmt.Errorf("datafile %s already exists", id), ErrCodeDatafileIDExists)
		}
	} else {
		id, err = store.GenerateDatafileID(c.store.DatafileExists)
		if err != nil {
			return api.DatafileResponse{}, storeFailure(err)
		}
	}

	datafile := &models.Datafile{
		ID:        id,
		Filename:  filename,
		Size:      size,
		MD5Sum:    md5sum,
		SHA512Sum: sha512sum,
		Mimetype:  strings.TrimSpace(req.Mimetype),
	}

	replicas := make([]*models.Replica, 0, len(req.Replicas))
	for _, spec := range req.Replicas {
		url, protocol, err := validateLocation(spec.URL, spec.Protocol)
		if err != nil {
			return api.DatafileResponse{}, err
		}
		replicaID, err := c.newReplicaID(replicas)
		if err != nil {
			return api.DatafileResponse{}, storeFailure(err)
		}
		replicas = append(replicas, &models.Replica{ID: replicaID, URL: url, Protocol: protocol})
	}

	if err := c.store.CreateDatafileWithReplicas(ctx, datafile, replicas); err != nil {
		return api.DatafileResponse{}, classifyCreateError(err)
	}

	resp := api.DatafileResponse{Datafile: *datafile}
	for _, replica := range replicas {
		resp.Replicas = append(resp.Replicas, c.replicaResponse(*replica))
	}
	return resp, nil
}

// GetDatafile returns a datafile with its replicas.
func (c *CatalogService) GetDatafile(ctx context.Context, id string) (api.DatafileResponse, error) {
	datafile, err := c.getDatafile(ctx, id)
	if err != nil {
		return api.DatafileResponse{}, err
	}
	replicas, err := c.ListReplicas(ctx, store.ReplicaFilter{DatafileID: id})
	if err != nil {
		return api.DatafileResponse{}, err
	}
	return api.DatafileResponse{Datafile: *datafile, Replicas: replicas}, nil
}

// CreateReplica registers a new, unverified replica of an existing datafile.
func (c *CatalogService) CreateReplica(ctx context.Context, req api.ReplicaCreateRequest) (api.ReplicaResponse, error) {
	datafileID := strings.TrimSpace(req.DatafileID)
	if !validateDatafileID(datafileID) {
		return api.ReplicaResponse{}, badRequestCode(fmt.Errorf("invalid datafile id"), ErrCodeInvalidID)
	}
	url, protocol, err := validateLocation(req.URL, req.Protocol)
	if err != nil {
		return api.ReplicaResponse{}, err
	}
	if _, err := c.getDatafile(ctx, datafileID); err != nil {
		return api.ReplicaResponse{}, err
	}

	id, err := c.newReplicaID(nil)
	if err != nil {
		return api.ReplicaResponse{}, storeFailure(err)
	}
	replica := &models.Replica{ID: id, DatafileID: datafileID, URL: url, Protocol: protocol}
	if err := c.store.CreateReplica(ctx, replica); err != nil {
		return api.ReplicaResponse{}, classifyCreateError(err)
	}
	return c.replicaResponse(*replica), nil
}

// GetReplica returns one replica with its resolved location.
func (c *CatalogService) GetReplica(ctx context.Context, id string) (api.ReplicaResponse, error) {
	replica, err := c.getReplica(ctx, id)
	if err != nil {
		return api.ReplicaResponse{}, err
	}
	return c.replicaResponse(*replica), nil
}

// ListReplicas lists replicas matching filter.
func (c *CatalogService) ListReplicas(ctx context.Context, filter store.ReplicaFilter) ([]api.ReplicaResponse, error) {
	replicas, err := c.store.ListReplicas(ctx, filter)
	if err != nil {
		return nil, storeFailure(err)
	}
	out := make([]api.ReplicaResponse, 0, len(replicas))
	for _, replica := range replicas {
		out = append(out, c.replicaResponse(replica))
	}
	return out, nil
}

// UpdateReplica moves a replica. Any change of location clears verified.
func (c *CatalogService) UpdateReplica(ctx context.Context, id string, req api.ReplicaUpdateRequest) (api.ReplicaResponse, error) {
	replica, err := c.getReplica(ctx, id)
	if err != nil {
		return api.ReplicaResponse{}, err
	}
	if req.URL == nil && req.Protocol == nil {
		return api.ReplicaResponse{}, badRequestCode(fmt.Errorf("url or protocol is required"), ErrCodeMissingRequired)
	}

	rawURL := replica.URL
	if req.URL != nil {
		rawURL = *req.URL
	}
	rawProtocol := replica.Protocol
	if req.Protocol != nil {
		rawProtocol = *req.Protocol
	}
	url, protocol, err := validateLocation(rawURL, rawProtocol)
	if err != nil {
		return api.ReplicaResponse{}, err
	}
	if url == replica.URL && protocol == replica.Protocol {
		return c.replicaResponse(*replica), nil
	}

	if err := c.store.UpdateReplicaLocation(ctx, id, url, protocol); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return api.ReplicaResponse{}, notFoundCode(fmt.Errorf("replica %s not found", id), ErrCodeReplicaNotFound)
		}
		return api.ReplicaResponse{}, classifyCreateError(err)
	}
	replica.SetURL(url)
	replica.Protocol = protocol
	replica.Verified = false
	return c.replicaResponse(*replica), nil
}

// LoadReplica returns a replica and the datafile it copies.
func (c *CatalogService) LoadReplica(ctx context.Context, id string) (*models.Replica, *models.Datafile, error) {
	replica, err := c.getReplica(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	datafile, err := c.getDatafile(ctx, replica.DatafileID)
	if err != nil {
		return nil, nil, err
	}
	return replica, datafile, nil
}

func (c *CatalogService) getReplica(ctx context.Context, id string) (*models.Replica, error) {
	replica, err := c.store.GetReplica(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if replica == nil {
		return nil, notFoundCode(fmt.Errorf("replica %s not found", id), ErrCodeReplicaNotFound)
	}
	return replica, nil
}

func (c *CatalogService) getDatafile(ctx context.Context, id string) (*models.Datafile, error) {
	datafile, err := c.store.GetDatafile(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if datafile == nil {
		return nil, notFoundCode(fmt.Errorf("datafile %s not found", id), ErrCodeDatafileNotFound)
	}
	return datafile, nil
}

// newReplicaID generates an id unused in the store and in pending.
func (c *CatalogService) newReplicaID(pending []*models.Replica) (string, error) {
	return store.GenerateReplicaID(func(id string) (bool, error) {
		for _, replica := range pending {
			if replica.ID == id {
				return true, nil
			}
		}
		return c.store.ReplicaExists(id)
	})
}

// NewDatafileID generates an unused datafile id.
func (c *CatalogService) NewDatafileID() (string, error) {
	return store.GenerateDatafileID(c.store.DatafileExists)
}

// NewReplicaID generates an unused replica id.
func (c *CatalogService) NewReplicaID() (string, error) {
	return c.newReplicaID(nil)
}

func (c *CatalogService) replicaResponse(replica models.Replica) api.ReplicaResponse {
	resp := api.ReplicaResponse{Replica: replica, Local: c.resolver.IsLocal(replica)}
	if actual, ok := c.resolver.ActualURL(replica); ok {
		resp.ActualURL = actual
	}
	return resp
}

func classifyCreateError(err error) error {
	if !store.IsUniqueConstraint(err) {
		return storeFailure(err)
	}
	if strings.Contains(err.Error(), "replicas.protocol") || strings.Contains(err.Error(), "replicas.url") {
		return conflictCode(fmt.Errorf("a replica already exists at this location"), ErrCodeReplicaLocationExists)
	}
	return conflictCode(fmt.Errorf("record already exists"), ErrCodeConflict)
}

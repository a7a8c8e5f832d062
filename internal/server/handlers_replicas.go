package server

import (
	"errors"
	"fmt"
	"net/http"

	"replicas/internal/api"
	"replicas/internal/replica"
	"replicas/internal/store"
)

var errInvalidDatafileID = errors.New("invalid datafile id")

func (s *Server) handleCreateReplica(w http.ResponseWriter, r *http.Request) {
	var req api.ReplicaCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	resp, err := s.catalog.CreateReplica(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetReplica(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, validateReplicaID)
	if !ok {
		return
	}

	resp, err := s.catalog.GetReplica(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateReplica(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, validateReplicaID)
	if !ok {
		return
	}
	var req api.ReplicaUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	unlock := s.replicas.Lock(id)
	defer unlock()

	resp, err := s.catalog.UpdateReplica(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerifyReplica(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, validateReplicaID)
	if !ok {
		return
	}
	var req api.VerifyRequest
	if !s.decodeOptionalJSONReq(w, r, &req) {
		return
	}

	ctx := r.Context()
	if err := s.waitLimiter(ctx, s.verifyLimiter); err != nil {
		return
	}
	defer s.releaseLimiter(s.verifyLimiter)

	unlock := s.replicas.Lock(id)
	defer unlock()

	rec, datafile, err := s.catalog.LoadReplica(ctx, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	res, verifyErr := s.replicas.VerifyDetailed(ctx, rec, datafile, replica.VerifyOptions{
		AllowEmptyChecksums: req.AllowEmptyChecksums,
		UpdateDatafile:      req.UpdateDatafile,
	})
	if res.Reason == replica.ReasonStoreFailure {
		s.writeErrorReq(w, r, http.StatusInternalServerError, storeFailure(verifyErr))
		return
	}

	resp := api.VerifyResponse{
		ReplicaID: rec.ID,
		Verified:  res.Verified(),
		Reason:    string(res.Reason),
		Size:      res.Size,
		MD5Sum:    res.MD5,
		SHA512Sum: res.SHA512,
		Datafile:  *datafile,
	}
	if verifyErr != nil {
		resp.Error = verifyErr.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteReplica(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, validateReplicaID)
	if !ok {
		return
	}

	ctx := r.Context()
	unlock := s.replicas.Lock(id)
	defer unlock()

	rec, _, err := s.catalog.LoadReplica(ctx, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.replicas.DeleteCompletely(ctx, *rec); err != nil {
		s.writeServiceError(w, r, classifyDeleteError(id, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func classifyDeleteError(id string, err error) error {
	var deleteErr *replica.DeleteError
	switch {
	case errors.Is(err, replica.ErrRemoteDelete):
		return conflictCode(err, ErrCodeRemoteDelete)
	case errors.Is(err, replica.ErrUnresolvableLocation):
		return conflictCode(err, ErrCodeConflict)
	case errors.As(err, &deleteErr):
		return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeDeleteFailed, err)
	case errors.Is(err, store.ErrNotFound):
		return notFoundCode(fmt.Errorf("replica %s not found", id), ErrCodeReplicaNotFound)
	default:
		return storeFailure(err)
	}
}

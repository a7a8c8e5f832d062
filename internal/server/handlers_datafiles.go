package server

import (
	"net/http"

	"replicas/internal/api"
	"replicas/internal/store"
)

func (s *Server) handleCreateDatafile(w http.ResponseWriter, r *http.Request) {
	var req api.DatafileCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	resp, err := s.catalog.CreateDatafile(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetDatafile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, validateDatafileID)
	if !ok {
		return
	}

	resp, err := s.catalog.GetDatafile(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDatafileReplicas(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, validateDatafileID)
	if !ok {
		return
	}

	resp, err := s.catalog.GetDatafile(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	replicas := resp.Replicas
	if replicas == nil {
		replicas = []api.ReplicaResponse{}
	}
	s.writeJSON(w, http.StatusOK, replicas)
}

func (s *Server) handleListReplicas(w http.ResponseWriter, r *http.Request) {
	filter := store.ReplicaFilter{DatafileID: r.URL.Query().Get("datafile_id")}
	if filter.DatafileID != "" && !validateDatafileID(filter.DatafileID) {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(errInvalidDatafileID, ErrCodeInvalidID))
		return
	}

	verified, err := queryOptionalBool(r, "verified")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	filter.Verified = verified
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp, err := s.catalog.ListReplicas(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

package server

import (
	"context"
	"net/http"
)

type schemaVersioner interface {
	SchemaVersion(ctx context.Context) (int, error)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	resp := s.info
	if resp.Providers == nil {
		resp.Providers = []string{}
	}
	if versioner, ok := s.store.(schemaVersioner); ok {
		version, err := versioner.SchemaVersion(r.Context())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		resp.SchemaVersion = version
	}

	s.writeJSON(w, http.StatusOK, resp)
}

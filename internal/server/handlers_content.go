package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"replicas/internal/api"
	"replicas/internal/blobstore"
	"replicas/internal/replica"
)

const fallbackContentType = "application/octet-stream"

func (s *Server) handleReplicaContent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, validateReplicaID)
	if !ok {
		return
	}

	ctx := r.Context()
	unlock := s.replicas.Lock(id)
	defer unlock()

	rec, datafile, err := s.catalog.LoadReplica(ctx, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	body, err := s.replicas.GetFile(ctx, *rec)
	if err != nil {
		if errors.Is(err, replica.ErrNotVerified) {
			s.writeServiceError(w, r, conflictCode(fmt.Errorf("replica %s is not verified", id), ErrCodeReplicaNotVerified))
			return
		}
		s.writeServiceError(w, r, unavailable(err))
		return
	}
	defer body.Close()

	contentType := datafile.Mimetype
	if contentType == "" {
		contentType = fallbackContentType
	}
	w.Header().Set("Content-Type", contentType)
	if size, ok, err := datafile.ExpectedSize(); err == nil && ok {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if datafile.Filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": datafile.Filename}))
	}
	w.WriteHeader(http.StatusOK)

	if n, err := io.Copy(w, body); err != nil {
		s.log().Error("stream replica content", "replica", id, "written", n, "error", err)
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.ingestLimiter, w, r, "ingest") {
		return
	}
	defer s.releaseLimiter(s.ingestLimiter)

	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("filename is required"), ErrCodeMissingRequired))
		return
	}

	datafileID, err := s.catalog.NewDatafileID()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	replicaID, err := s.catalog.NewReplicaID()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	datafile, rec, err := s.replicas.Ingest(r.Context(), replica.IngestRequest{
		DatafileID: datafileID,
		ReplicaID:  replicaID,
		Filename:   filename,
		Name:       r.URL.Query().Get("name"),
		Body:       r.Body,
	})
	if err != nil {
		s.writeServiceError(w, r, classifyIngestError(err))
		return
	}
	s.writeJSON(w, http.StatusCreated, api.IngestResponse{Datafile: *datafile, Replica: *rec})
}

func classifyIngestError(err error) error {
	switch {
	case errors.Is(err, blobstore.ErrFileExists):
		return conflictCode(err, ErrCodeFileExists)
	case errors.Is(err, blobstore.ErrPathEscapesRoot):
		return badRequestCode(err, ErrCodeInvalidURL)
	case errors.Is(err, replica.ErrInvalidName):
		return badRequest(err)
	default:
		return internalError(err)
	}
}

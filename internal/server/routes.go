package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check, info and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Datafiles.
	mux.HandleFunc("POST /v1/datafiles", s.handleCreateDatafile)
	mux.HandleFunc("GET /v1/datafiles/{id}", s.handleGetDatafile)
	mux.HandleFunc("GET /v1/datafiles/{id}/replicas", s.handleListDatafileReplicas)

	// Replicas collection.
	mux.HandleFunc("POST /v1/replicas", s.handleCreateReplica)
	mux.HandleFunc("GET /v1/replicas", s.handleListReplicas)

	// Single replica.
	mux.HandleFunc("GET /v1/replicas/{id}", s.handleGetReplica)
	mux.HandleFunc("PATCH /v1/replicas/{id}", s.handleUpdateReplica)
	mux.HandleFunc("DELETE /v1/replicas/{id}", s.handleDeleteReplica)
	mux.HandleFunc("POST /v1/replicas/{id}/verify", s.handleVerifyReplica)
	mux.HandleFunc("GET /v1/replicas/{id}/content", s.handleReplicaContent)

	// Uploads into the file store.
	mux.HandleFunc("POST /v1/ingest", s.handleIngest)

	return mux
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"replicas/internal/blobstore"
	"replicas/internal/config"
	"replicas/internal/location"
	"replicas/internal/opener"
	"replicas/internal/replica"
	"replicas/internal/store"
)

// replicaRuntime is the in-process wiring shared by srv and local commands.
type replicaRuntime struct {
	store    *store.Store
	service  *replica.Service
	registry *prometheus.Registry
}

func (r *replicaRuntime) Close() error {
	return r.store.Close()
}

func openRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*replicaRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path is required")
	}

	var storage blobstore.Storage
	if root, ok := cfg.FileStoreRoot(); ok {
		local, err := blobstore.NewLocalStorage(root)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		storage = local
	} else {
		logger.Warn("file_store_path is not configured; local replicas are unresolvable")
	}

	op, err := opener.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := replica.NewService(location.NewResolver(cfg), storage, op, st, logger)
	svc.SetMetrics(replica.NewMetrics(registry))

	return &replicaRuntime{store: st, service: svc, registry: registry}, nil
}

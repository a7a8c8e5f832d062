package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"replicas/internal/config"
	"replicas/internal/server"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the replicas API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			srv := server.New(addr, rt.store, rt.service, logger)
			srv.SetGatherer(rt.registry)
			srv.SetVerifyConcurrency(cfg.Verify.Concurrency)
			srv.SetInfo(cfg.DBPath, cfg.FileStorePath, cfg.ProviderProtocols())
			return srv.ListenAndServe()
		},
	}
}

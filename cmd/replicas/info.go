package main

import (
	"strings"

	"github.com/spf13/cobra"

	"replicas/internal/api"
	"replicas/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show database, file store and provider info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(resp)
				}

				fileStore := resp.FileStorePath
				if fileStore == "" {
					fileStore = "(not configured)"
				}
				_ = writePlain("db_path: %s\n", resp.DBPath)
				_ = writePlain("file_store_path: %s\n", fileStore)
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				if len(resp.Providers) > 0 {
					_ = writePlain("providers: %s\n", strings.Join(resp.Providers, ", "))
				}
				return nil
			})
		},
	}
	return cmd
}

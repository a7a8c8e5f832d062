package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"replicas/internal/api"
	"replicas/internal/config"
)

func newIngestCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		filename string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Upload a file into the file store as a new, verified datafile",
		Args:  requireExactlyArgs(1, "path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if filename == "" {
				filename = filepath.Base(args[0])
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Ingest(cmd.Context(), filename, name, f)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("✓ %s %s -> %s (%s bytes)\n", resp.Datafile.ID, resp.Datafile.Filename, resp.Replica.ID, resp.Datafile.Size)
			})
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "", "datafile filename (default: base name of path)")
	cmd.Flags().StringVar(&name, "name", "", "path inside the file store (default: filename)")
	return cmd
}

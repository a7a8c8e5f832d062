package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"replicas/internal/api"
	"replicas/internal/config"
)

type importSummary struct {
	Datafiles int      `json:"datafiles"`
	Replicas  int      `json:"replicas"`
	IDs       []string `json:"ids,omitempty"`
	DryRun    bool     `json:"dry_run,omitempty"`
}

func newImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <manifest.yaml>",
		Short: "Register datafiles and replicas listed in a YAML manifest",
		Args:  requireExactlyArgs(1, "manifest path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			reqs, err := parseManifest(f)
			if err != nil {
				return err
			}

			summary := importSummary{DryRun: dryRun}
			if dryRun {
				for _, req := range reqs {
					summary.Datafiles++
					summary.Replicas += len(req.Replicas)
				}
				return writeImportSummary(summary, *jsonOutput)
			}

			return withClient(cfg, func(client *api.Client) error {
				for i, req := range reqs {
					resp, err := client.CreateDatafile(cmd.Context(), req)
					if err != nil {
						_ = writeImportSummary(summary, *jsonOutput)
						return fmt.Errorf("datafiles[%d] (%s): %w", i, req.Filename, err)
					}
					summary.Datafiles++
					summary.Replicas += len(resp.Replicas)
					summary.IDs = append(summary.IDs, resp.ID)
				}
				return writeImportSummary(summary, *jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the manifest without registering anything")
	return cmd
}

func writeImportSummary(summary importSummary, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(summary)
	}
	prefix := "imported"
	if summary.DryRun {
		prefix = "would import"
	}
	return writePlain("%s %d datafiles, %d replicas\n", prefix, summary.Datafiles, summary.Replicas)
}

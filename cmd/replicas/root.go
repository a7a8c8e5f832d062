package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"replicas/internal/config"
	"replicas/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		prettyJSON bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "replicas",
		Short:         "Replicas tracks and verifies physical copies of datafiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			if prettyJSON {
				outputFormatter = format.JSONFormatter{Indent: "  "}
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&prettyJSON, "pretty", false, "indent JSON output")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newInfoCmd(cfg, &jsonOutput),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg, &jsonOutput),
		newDatafileCmd(cfg, &jsonOutput),
		newReplicaCmd(cfg, &jsonOutput),
		newIngestCmd(cfg, &jsonOutput),
		newImportCmd(cfg, &jsonOutput),
	)

	return cmd
}

package main

import (
	"github.com/spf13/cobra"

	"replicas/internal/api"
	"replicas/internal/config"
)

func newDatafileCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datafile",
		Short: "Register and inspect datafiles",
	}
	cmd.AddCommand(
		newDatafileAddCmd(cfg, jsonOutput),
		newDatafileShowCmd(cfg, jsonOutput),
	)
	return cmd
}

func newDatafileAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		req      api.DatafileCreateRequest
		urls     []string
		protocol string
	)

	cmd := &cobra.Command{
		Use:   "add <filename>",
		Short: "Register a datafile and, optionally, its replicas",
		Args:  requireExactlyArgs(1, "filename is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Filename = args[0]
			for _, u := range urls {
				req.Replicas = append(req.Replicas, api.ReplicaSpec{URL: u, Protocol: protocol})
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.CreateDatafile(cmd.Context(), req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeDatafileDetail(resp)
			})
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "datafile id (generated when empty)")
	cmd.Flags().StringVar(&req.Size, "size", "", "recorded size in bytes")
	cmd.Flags().StringVar(&req.MD5Sum, "md5", "", "recorded MD5 checksum (hex)")
	cmd.Flags().StringVar(&req.SHA512Sum, "sha512", "", "recorded SHA-512 checksum (hex)")
	cmd.Flags().StringVar(&req.Mimetype, "mimetype", "", "recorded mimetype")
	cmd.Flags().StringArrayVar(&urls, "replica", nil, "replica url (repeatable)")
	cmd.Flags().StringVar(&protocol, "protocol", "", "storage provider protocol for --replica urls")
	return cmd
}

func newDatafileShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>...",
		Short: "Show datafiles and their replicas",
		Args:  requireDatafileIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				results := make([]api.DatafileResponse, 0, len(args))
				for _, id := range args {
					resp, err := client.GetDatafile(cmd.Context(), id)
					if err != nil {
						return err
					}
					results = append(results, resp)
				}
				if *jsonOutput {
					if len(results) == 1 {
						return writeJSON(results[0])
					}
					return writeJSON(results)
				}
				for i, resp := range results {
					if i > 0 {
						_ = writePlain("\n")
					}
					if err := writeDatafileDetail(resp); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

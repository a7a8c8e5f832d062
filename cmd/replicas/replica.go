package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"replicas/internal/api"
	"replicas/internal/config"
)

func newReplicaCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replica",
		Short: "Register, verify, read and delete replicas",
	}
	cmd.AddCommand(
		newReplicaAddCmd(cfg, jsonOutput),
		newReplicaShowCmd(cfg, jsonOutput),
		newReplicaListCmd(cfg, jsonOutput),
		newReplicaMoveCmd(cfg, jsonOutput),
		newReplicaVerifyCmd(cfg, jsonOutput),
		newReplicaGetCmd(cfg),
		newReplicaDeleteCmd(cfg, jsonOutput),
	)
	return cmd
}

func newReplicaAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var protocol string

	cmd := &cobra.Command{
		Use:   "add <datafile-id> <url>",
		Short: "Register a new, unverified replica of a datafile",
		Args:  cobra.MatchAll(requireExactlyArgs(2, "datafile id and url are required"), firstArg(requireDatafileIDs)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.CreateReplica(cmd.Context(), api.ReplicaCreateRequest{
					DatafileID: args[0],
					URL:        args[1],
					Protocol:   protocol,
				})
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeReplicaDetail(resp)
			})
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", "", "storage provider protocol")
	return cmd
}

func newReplicaShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>...",
		Short: "Show replicas",
		Args:  requireReplicaIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				results := make([]api.ReplicaResponse, 0, len(args))
				for _, id := range args {
					resp, err := client.GetReplica(cmd.Context(), id)
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
					if err := writeReplicaDetail(resp); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newReplicaListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		datafileID string
		verified   bool
		unverified bool
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List replicas",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verified && unverified {
				return errors.New("--verified and --unverified are mutually exclusive")
			}
			query := replicaListQuery(datafileID, verified, unverified, limit, offset)

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ListReplicas(cmd.Context(), query)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeReplicaList(resp)
			})
		},
	}

	cmd.Flags().StringVar(&datafileID, "datafile", "", "only replicas of this datafile")
	cmd.Flags().BoolVar(&verified, "verified", false, "only verified replicas")
	cmd.Flags().BoolVar(&unverified, "unverified", false, "only unverified replicas")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum replicas to list (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "replicas to skip")
	return cmd
}

func replicaListQuery(datafileID string, verified, unverified bool, limit, offset int) url.Values {
	query := url.Values{}
	if datafileID != "" {
		query.Set("datafile_id", datafileID)
	}
	switch {
	case verified:
		query.Set("verified", "true")
	case unverified:
		query.Set("verified", "false")
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	return query
}

func newReplicaMoveCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var protocol string

	cmd := &cobra.Command{
		Use:   "move <id> <url>",
		Short: "Point a replica at a new location (clears verified)",
		Args:  cobra.MatchAll(requireExactlyArgs(2, "id and url are required"), firstArg(requireReplicaIDs)),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ReplicaUpdateRequest{URL: &args[1]}
			if cmd.Flags().Changed("protocol") {
				req.Protocol = &protocol
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.UpdateReplica(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeReplicaDetail(resp)
			})
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", "", "new storage provider protocol")
	return cmd
}

func newReplicaGetCmd(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write a verified replica's bytes to stdout or a file",
		Args:  cobra.MatchAll(cobra.ExactArgs(1), requireReplicaIDs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				var w io.Writer = os.Stdout
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				n, err := client.ReplicaContent(cmd.Context(), args[0], w)
				if err != nil {
					if output != "" && output != "-" {
						_ = os.Remove(output)
					}
					return err
				}
				if w != os.Stdout {
					fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", n, output)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newReplicaDeleteCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete local replicas: their bytes first, then the record",
		Args:  requireReplicaIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				for _, id := range args {
					if err := client.DeleteReplica(cmd.Context(), id); err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
				}
				if *jsonOutput {
					return writeJSON(map[string]any{"deleted": args})
				}
				for _, id := range args {
					_ = writePlain("deleted %s\n", id)
				}
				return nil
			})
		},
	}
}

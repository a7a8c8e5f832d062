package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"replicas/internal/api"
	"replicas/internal/config"
	"replicas/internal/replica"
)

type verifyFlags struct {
	all                 bool
	unverified          bool
	datafileID          string
	concurrency         int
	allowEmptyChecksums bool
	updateDatafile      bool
	tee                 string
}

func (f verifyFlags) request() api.VerifyRequest {
	return api.VerifyRequest{
		AllowEmptyChecksums: f.allowEmptyChecksums,
		UpdateDatafile:      f.updateDatafile,
	}
}

func newReplicaVerifyCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var flags verifyFlags

	cmd := &cobra.Command{
		Use:   "verify [<id>...]",
		Short: "Read replicas end to end and mark those matching their datafile verified",
		Args:  requireOptionalReplicaIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.all == (len(args) > 0) {
				return errors.New("pass replica ids or --all")
			}
			if flags.tee != "" {
				if len(args) != 1 {
					return errors.New("--tee verifies exactly one replica")
				}
				resp, err := verifyWithTee(cmd.Context(), cfg, args[0], flags)
				if resp.ReplicaID != "" {
					if reportErr := reportVerify([]api.VerifyResponse{resp}, *jsonOutput); reportErr != nil {
						return reportErr
					}
				}
				return err
			}

			return withClient(cfg, func(client *api.Client) error {
				ids := args
				if flags.all {
					var err error
					if ids, err = collectVerifyTargets(cmd.Context(), client, flags); err != nil {
						return err
					}
				}
				results, err := verifyBatch(cmd.Context(), client, ids, flags.concurrency, flags.request())
				if reportErr := reportVerify(results, *jsonOutput); reportErr != nil {
					return reportErr
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&flags.all, "all", false, "verify every replica")
	cmd.Flags().BoolVar(&flags.unverified, "unverified", false, "with --all, only replicas not yet verified")
	cmd.Flags().StringVar(&flags.datafileID, "datafile", "", "with --all, only replicas of this datafile")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", cfg.Verify.Concurrency, "replicas verified in parallel")
	cmd.Flags().BoolVar(&flags.allowEmptyChecksums, "allow-empty-checksums", false, "verify datafiles without checksums on size alone")
	cmd.Flags().BoolVar(&flags.updateDatafile, "update-datafile", false, "backfill size, checksums and mimetype on success")
	cmd.Flags().StringVar(&flags.tee, "tee", "", "also write the replica bytes to this file (runs in-process)")
	return cmd
}

func collectVerifyTargets(ctx context.Context, client *api.Client, flags verifyFlags) ([]string, error) {
	query := url.Values{}
	if flags.datafileID != "" {
		query.Set("datafile_id", flags.datafileID)
	}
	if flags.unverified {
		query.Set("verified", "false")
	}
	replicas, err := client.ListReplicas(ctx, query)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(replicas))
	for _, rep := range replicas {
		ids = append(ids, rep.ID)
	}
	return ids, nil
}

// verifyBatch verifies ids with at most concurrency requests in flight.
// Request errors do not stop the batch; they are merged into the returned
// error and the failed ids are left out of the results.
func verifyBatch(ctx context.Context, client *api.Client, ids []string, concurrency int, req api.VerifyRequest) ([]api.VerifyResponse, error) {
	if concurrency <= 0 {
		concurrency = config.DefaultVerifyConcurrency
	}

	results := make([]*api.VerifyResponse, len(ids))
	var (
		mu   sync.Mutex
		errs error
	)

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			resp, err := client.VerifyReplica(ctx, id, req)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", id, err))
				mu.Unlock()
				return nil
			}
			results[i] = &resp
			return nil
		})
	}
	_ = g.Wait()

	out := make([]api.VerifyResponse, 0, len(ids))
	failed := 0
	for _, resp := range results {
		if resp == nil {
			continue
		}
		if !resp.Verified {
			failed++
		}
		out = append(out, *resp)
	}
	if failed > 0 {
		errs = multierr.Append(errs, fmt.Errorf("%d of %d replicas failed verification", failed, len(ids)))
	}
	return out, errs
}

func reportVerify(results []api.VerifyResponse, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(results)
	}
	for _, resp := range results {
		if err := writeVerifyResult(resp); err != nil {
			return err
		}
	}
	return nil
}

// verifyWithTee verifies one replica in-process so its bytes can be copied
// to a local file while they are digested. A tee file whose bytes did not
// verify is removed.
// checkTeeTarget refuses a tee path that is the replica's own file, which
// os.Create would truncate before it is read.
func checkTeeTarget(tee, replicaPath string) error {
	teeAbs, err := filepath.Abs(tee)
	if err != nil {
		return err
	}
	replicaAbs, err := filepath.Abs(replicaPath)
	if err != nil {
		return err
	}
	if teeAbs == replicaAbs {
		return fmt.Errorf("--tee %s is the replica's own file", tee)
	}
	teeInfo, err := os.Stat(teeAbs)
	if err != nil {
		return nil
	}
	if replicaInfo, err := os.Stat(replicaAbs); err == nil && os.SameFile(teeInfo, replicaInfo) {
		return fmt.Errorf("--tee %s is the replica's own file", tee)
	}
	return nil
}

func verifyWithTee(ctx context.Context, cfg *config.Config, id string, flags verifyFlags) (api.VerifyResponse, error) {
	logger := slog.Default().With("component", "verify")
	rt, err := openRuntime(ctx, cfg, logger)
	if err != nil {
		return api.VerifyResponse{}, err
	}
	defer rt.Close()

	// No lock here: a running srv holds its own. SaveVerification only
	// marks the replica if its url is still the one that was read.
	rec, err := rt.store.GetReplica(ctx, id)
	if err != nil {
		return api.VerifyResponse{}, err
	}
	if rec == nil {
		return api.VerifyResponse{}, fmt.Errorf("replica %s not found", id)
	}
	datafile, err := rt.store.GetDatafile(ctx, rec.DatafileID)
	if err != nil {
		return api.VerifyResponse{}, err
	}
	if datafile == nil {
		return api.VerifyResponse{}, fmt.Errorf("datafile %s not found", rec.DatafileID)
	}

	if loc, err := rt.service.Resolver().Resolve(*rec); err == nil && loc.Path != "" {
		if err := checkTeeTarget(flags.tee, loc.Path); err != nil {
			return api.VerifyResponse{}, err
		}
	}
	f, err := os.Create(flags.tee)
	if err != nil {
		return api.VerifyResponse{}, err
	}
	res, verifyErr := rt.service.VerifyDetailed(ctx, rec, datafile, replica.VerifyOptions{
		Tee:                 f,
		AllowEmptyChecksums: flags.allowEmptyChecksums,
		UpdateDatafile:      flags.updateDatafile,
	})
	closeErr := f.Close()
	if !res.Verified() {
		_ = os.Remove(flags.tee)
	}
	if res.Reason == replica.ReasonStoreFailure {
		return api.VerifyResponse{}, verifyErr
	}

	resp := api.VerifyResponse{
		ReplicaID: rec.ID,
		Verified:  res.Verified(),
		Reason:    string(res.Reason),
		Size:      res.Size,
		MD5Sum:    res.MD5,
		SHA512Sum: res.SHA512,
		Datafile:  *datafile,
	}
	if verifyErr != nil {
		resp.Error = verifyErr.Error()
		return resp, fmt.Errorf("replica %s failed verification: %s", rec.ID, res.Reason)
	}
	if closeErr != nil {
		return resp, fmt.Errorf("write %s: %w", flags.tee, closeErr)
	}
	return resp, nil
}

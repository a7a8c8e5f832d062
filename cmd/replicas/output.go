package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"replicas/internal/api"
	"replicas/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeReplicaList(replicas []api.ReplicaResponse) error {
	for _, rep := range replicas {
		if err := writePlain("%s\n", formatReplicaLine(rep)); err != nil {
			return err
		}
	}
	return nil
}

func writeDatafileDetail(datafile api.DatafileResponse) error {
	lines := []string{
		fmt.Sprintf("id: %s", datafile.ID),
		fmt.Sprintf("filename: %s", datafile.Filename),
	}
	if datafile.Size != "" {
		lines = append(lines, fmt.Sprintf("size: %s", datafile.Size))
	}
	if datafile.MD5Sum != "" {
		lines = append(lines, fmt.Sprintf("md5sum: %s", datafile.MD5Sum))
	}
	if datafile.SHA512Sum != "" {
		lines = append(lines, fmt.Sprintf("sha512sum: %s", datafile.SHA512Sum))
	}
	if datafile.Mimetype != "" {
		lines = append(lines, fmt.Sprintf("mimetype: %s", datafile.Mimetype))
	}
	lines = append(lines,
		fmt.Sprintf("created_at: %s", formatTime(datafile.CreatedAt)),
		fmt.Sprintf("modified_at: %s", formatTime(datafile.ModifiedAt)),
	)
	if len(datafile.Replicas) > 0 {
		lines = append(lines, "replicas:")
		for _, rep := range datafile.Replicas {
			lines = append(lines, "  "+formatReplicaLine(rep))
		}
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeReplicaDetail(rep api.ReplicaResponse) error {
	lines := []string{
		fmt.Sprintf("id: %s", rep.ID),
		fmt.Sprintf("datafile_id: %s", rep.DatafileID),
		fmt.Sprintf("url: %s", rep.URL),
	}
	if rep.Protocol != "" {
		lines = append(lines, fmt.Sprintf("protocol: %s", rep.Protocol))
	}
	lines = append(lines,
		fmt.Sprintf("verified: %t", rep.Verified),
		fmt.Sprintf("local: %t", rep.Local),
	)
	if rep.ActualURL != "" {
		lines = append(lines, fmt.Sprintf("actual_url: %s", rep.ActualURL))
	}
	lines = append(lines,
		fmt.Sprintf("created_at: %s", formatTime(rep.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(rep.UpdatedAt)),
	)
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeVerifyResult(resp api.VerifyResponse) error {
	return writePlain("%s\n", formatVerifyLine(resp))
}

func formatReplicaLine(rep api.ReplicaResponse) string {
	mark := "○"
	if rep.Verified {
		mark = "✓"
	}
	location := rep.URL
	if rep.Protocol != "" {
		location = rep.Protocol + ":" + rep.URL
	}
	return fmt.Sprintf("%s %s [%s] %s", mark, rep.ID, rep.DatafileID, location)
}

func formatVerifyLine(resp api.VerifyResponse) string {
	if resp.Verified {
		return fmt.Sprintf("✓ %s verified (%d bytes)", resp.ReplicaID, resp.Size)
	}
	if resp.Error != "" {
		return fmt.Sprintf("✗ %s %s: %s", resp.ReplicaID, resp.Reason, resp.Error)
	}
	return fmt.Sprintf("✗ %s %s", resp.ReplicaID, resp.Reason)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

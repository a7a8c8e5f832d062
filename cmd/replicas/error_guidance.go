package main

import (
	"context"
	"errors"
	"net"
	"os"

	"replicas/internal/api"
	"replicas/internal/server"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized", "forbidden":
			lines = append(lines, "hint: verify REPLICAS_API_TOKEN matches the server.")
		case "resource_exhausted":
			lines = append(lines, "hint: retry shortly; the server limits concurrent ingests.")
		case "unavailable":
			lines = append(lines, "hint: the replica bytes could not be read; run: replicas replica verify <id>")
		}
		switch api.ErrorCodeOf(err) {
		case server.ErrCodeReplicaNotVerified:
			lines = append(lines, "hint: verify the replica first with: replicas replica verify <id>")
		case server.ErrCodeRemoteDelete:
			lines = append(lines, "hint: only file store and file:// replicas can be deleted; remove remote bytes at the provider.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify REPLICAS_API_URL points to a replicas server.")
		}
		if apiErr.Status >= 500 && apiErr.Code != "unavailable" {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase REPLICAS_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a replicas server is running at REPLICAS_API_URL.",
			"hint: start local server manually with: replicas srv",
		)
		if snapHint := snapStartHint(); snapHint != "" {
			lines = append(lines, snapHint)
		}
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func snapStartHint() string {
	if os.Getenv("SNAP") == "" && os.Getenv("SNAP_NAME") == "" {
		return ""
	}
	return "hint: in snap installs, start the daemon with: snap start replicas.daemon"
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

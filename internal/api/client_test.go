package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestClientDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "replica not found", Code: "not_found", ErrorCode: 2002})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetReplica(context.Background(), "rp-none")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.ErrorCode != 2002 || apiErr.Code != "not_found" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if !IsNotFound(err) {
		t.Fatal("expected IsNotFound")
	}
	if err.Error() != "not_found[2002]: replica not found" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	t.Setenv(apiTokenEnvKey, "secret")
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
}

func TestClientReplicaContentAndIngest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/replicas/rp-a/content":
			_, _ = io.WriteString(w, "payload")
		case r.Method == http.MethodPost && r.URL.Path == "/v1/ingest":
			body, _ := io.ReadAll(r.Body)
			resp := IngestResponse{}
			resp.Datafile.Filename = r.URL.Query().Get("filename")
			resp.Datafile.Size = strconv.Itoa(len(body))
			resp.Replica.URL = r.URL.Query().Get("name")
			_ = json.NewEncoder(w).Encode(resp)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	var buf bytes.Buffer
	n, err := client.ReplicaContent(context.Background(), "rp-a", &buf)
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if n != 7 || buf.String() != "payload" {
		t.Fatalf("unexpected content %d %q", n, buf.String())
	}

	resp, err := client.Ingest(context.Background(), "a.txt", "dir/a.txt", strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if resp.Datafile.Filename != "a.txt" || resp.Datafile.Size != "3" || resp.Replica.URL != "dir/a.txt" {
		t.Fatalf("unexpected ingest response %+v", resp)
	}
}

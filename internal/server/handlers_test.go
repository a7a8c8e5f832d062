package server

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"replicas/internal/api"
	"replicas/internal/blobstore"
	"replicas/internal/location"
	"replicas/internal/opener"
	"replicas/internal/replica"
	"replicas/internal/store"
)

type testSettings struct {
	root string
}

func (s testSettings) FileStoreRoot() (string, bool) { return s.root, s.root != "" }
func (s testSettings) ProviderProtocols() []string   { return nil }

type testServer struct {
	*Server
	root     string
	registry *prometheus.Registry
	handler  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv(apiTokenEnvKey, "")

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "replicas.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	root := filepath.Join(dir, "files")
	storage, err := blobstore.NewLocalStorage(root)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}

	remote := opener.OpenerFunc(func(ctx context.Context, rawURL string) (io.ReadCloser, error) {
		return nil, errors.New("connection refused")
	})
	svc := replica.NewService(location.NewResolver(testSettings{root: root}), storage, remote, st, nil)
	registry := prometheus.NewRegistry()
	svc.SetMetrics(replica.NewMetrics(registry))

	srv := New("127.0.0.1:0", st, svc, nil)
	srv.SetGatherer(registry)
	srv.SetInfo(filepath.Join(dir, "replicas.db"), root, nil)
	return &testServer{Server: srv, root: root, registry: registry, handler: srv.Handler()}
}

func (ts *testServer) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) writeFile(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(ts.root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func checksums(content string) (string, string) {
	m := md5.Sum([]byte(content))
	s := sha512.Sum512([]byte(content))
	return hex.EncodeToString(m[:]), hex.EncodeToString(s[:])
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	return out
}

func expectErrorCode(t *testing.T, w *httptest.ResponseRecorder, status, code int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d (%s)", status, w.Code, w.Body.String())
	}
	errResp := decodeBody[api.ErrorResponse](t, w)
	if errResp.ErrorCode != code {
		t.Fatalf("expected error_code %d, got %d", code, errResp.ErrorCode)
	}
}

// createHello registers hello.txt with a local replica and returns the replica id.
func (ts *testServer) createHello(t *testing.T, md5sum string) (api.DatafileResponse, string) {
	t.Helper()
	ts.writeFile(t, "hello.txt", "hello world")
	w := ts.do(t, http.MethodPost, "/v1/datafiles", api.DatafileCreateRequest{
		Filename: "hello.txt",
		Size:     "11",
		MD5Sum:   md5sum,
		Replicas: []api.ReplicaSpec{{URL: "hello.txt"}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	created := decodeBody[api.DatafileResponse](t, w)
	if len(created.Replicas) != 1 {
		t.Fatalf("expected one replica, got %d", len(created.Replicas))
	}
	return created, created.Replicas[0].ID
}

func TestCreateDatafile_RegistersUnverifiedReplicas(t *testing.T) {
	ts := newTestServer(t)
	md5sum, _ := checksums("hello world")

	created, replicaID := ts.createHello(t, strings.ToUpper(md5sum))
	if !validateDatafileID(created.ID) {
		t.Fatalf("unexpected datafile id %q", created.ID)
	}
	if created.MD5Sum != md5sum {
		t.Fatalf("expected lower-cased md5 %q, got %q", md5sum, created.MD5Sum)
	}
	rep := created.Replicas[0]
	if rep.Verified {
		t.Fatal("new replica must not be verified")
	}
	if !rep.Local {
		t.Fatal("expected schemeless replica to be local")
	}
	if rep.ActualURL != "file://"+filepath.Join(ts.root, "hello.txt") {
		t.Fatalf("unexpected actual url %q", rep.ActualURL)
	}

	w := ts.do(t, http.MethodGet, "/v1/replicas/"+replicaID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if got := decodeBody[api.ReplicaResponse](t, w); got.DatafileID != created.ID {
		t.Fatalf("expected datafile %q, got %q", created.ID, got.DatafileID)
	}

	w = ts.do(t, http.MethodGet, "/v1/datafiles/"+created.ID+"/replicas", nil)
	if got := decodeBody[[]api.ReplicaResponse](t, w); len(got) != 1 || got[0].ID != replicaID {
		t.Fatalf("unexpected replica listing: %+v", got)
	}
}

func TestCreateDatafile_Validation(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/datafiles", api.DatafileCreateRequest{Filename: "a", MD5Sum: "xyz"})
	expectErrorCode(t, w, http.StatusBadRequest, ErrCodeInvalidChecksum)

	w = ts.do(t, http.MethodPost, "/v1/datafiles", api.DatafileCreateRequest{Filename: "a", Size: "-1"})
	expectErrorCode(t, w, http.StatusBadRequest, ErrCodeInvalidSize)

	w = ts.do(t, http.MethodPost, "/v1/datafiles", api.DatafileCreateRequest{Size: "1"})
	expectErrorCode(t, w, http.StatusBadRequest, ErrCodeMissingRequired)
}

func TestCreateReplica_DuplicateLocationConflicts(t *testing.T) {
	ts := newTestServer(t)
	md5sum, _ := checksums("hello world")
	created, _ := ts.createHello(t, md5sum)

	w := ts.do(t, http.MethodPost, "/v1/replicas", api.ReplicaCreateRequest{DatafileID: created.ID, URL: "hello.txt"})
	expectErrorCode(t, w, http.StatusConflict, ErrCodeReplicaLocationExists)

	w = ts.do(t, http.MethodPost, "/v1/replicas", api.ReplicaCreateRequest{DatafileID: "df-missing", URL: "x.txt"})
	expectErrorCode(t, w, http.StatusNotFound, ErrCodeDatafileNotFound)

	w = ts.do(t, http.MethodPost, "/v1/replicas", api.ReplicaCreateRequest{DatafileID: created.ID, URL: "sub/.."})
	expectErrorCode(t, w, http.StatusBadRequest, ErrCodeInvalidURL)
}

func TestVerifyReplica_Success(t *testing.T) {
	ts := newTestServer(t)
	md5sum, sha512sum := checksums("hello world")
	created, replicaID := ts.createHello(t, md5sum)

	w := ts.do(t, http.MethodPost, "/v1/replicas/"+replicaID+"/verify", api.VerifyRequest{UpdateDatafile: true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	resp := decodeBody[api.VerifyResponse](t, w)
	if !resp.Verified || resp.Reason != string(replica.ReasonOK) {
		t.Fatalf("expected verified ok, got %+v", resp)
	}
	if resp.Datafile.SHA512Sum != sha512sum {
		t.Fatalf("expected sha512 backfill, got %q", resp.Datafile.SHA512Sum)
	}

	w = ts.do(t, http.MethodGet, "/v1/datafiles/"+created.ID, nil)
	shown := decodeBody[api.DatafileResponse](t, w)
	if shown.SHA512Sum != sha512sum {
		t.Fatalf("expected persisted sha512 backfill, got %q", shown.SHA512Sum)
	}
	if len(shown.Replicas) != 1 || !shown.Replicas[0].Verified {
		t.Fatalf("expected verified replica, got %+v", shown.Replicas)
	}
}

func TestVerifyReplica_FailureReasons(t *testing.T) {
	t.Run("checksum mismatch", func(t *testing.T) {
		ts := newTestServer(t)
		_, replicaID := ts.createHello(t, strings.Repeat("0", 32))

		w := ts.do(t, http.MethodPost, "/v1/replicas/"+replicaID+"/verify", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
		}
		resp := decodeBody[api.VerifyResponse](t, w)
		if resp.Verified || resp.Reason != string(replica.ReasonMD5Mismatch) {
			t.Fatalf("expected md5 mismatch, got %+v", resp)
		}
		if resp.Error == "" {
			t.Fatal("expected error detail")
		}
	})

	t.Run("missing checksum", func(t *testing.T) {
		ts := newTestServer(t)
		_, replicaID := ts.createHello(t, "")

		w := ts.do(t, http.MethodPost, "/v1/replicas/"+replicaID+"/verify", nil)
		resp := decodeBody[api.VerifyResponse](t, w)
		if resp.Verified || resp.Reason != string(replica.ReasonMissingChecksum) {
			t.Fatalf("expected missing checksum, got %+v", resp)
		}

		w = ts.do(t, http.MethodPost, "/v1/replicas/"+replicaID+"/verify", api.VerifyRequest{AllowEmptyChecksums: true})
		resp = decodeBody[api.VerifyResponse](t, w)
		if !resp.Verified {
			t.Fatalf("expected allow-empty verify to pass, got %+v", resp)
		}
	})

	t.Run("remote open failure", func(t *testing.T) {
		ts := newTestServer(t)
		md5sum, _ := checksums("hello world")
		w := ts.do(t, http.MethodPost, "/v1/datafiles", api.DatafileCreateRequest{
			Filename: "hello.txt",
			MD5Sum:   md5sum,
			Replicas: []api.ReplicaSpec{{URL: "http://127.0.0.1:1/hello.txt"}},
		})
		created := decodeBody[api.DatafileResponse](t, w)

		w = ts.do(t, http.MethodPost, "/v1/replicas/"+created.Replicas[0].ID+"/verify", nil)
		resp := decodeBody[api.VerifyResponse](t, w)
		if resp.Verified || resp.Reason != string(replica.ReasonOpenFailure) {
			t.Fatalf("expected open failure, got %+v", resp)
		}
	})

	t.Run("unknown replica", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(t, http.MethodPost, "/v1/replicas/rp-zzzz/verify", nil)
		expectErrorCode(t, w, http.StatusNotFound, ErrCodeReplicaNotFound)
	})
}

func TestReplicaContent_RequiresVerification(t *testing.T) {
	ts := newTestServer(t)
	md5sum, _ := checksums("hello world")
	_, replicaID := ts.createHello(t, md5sum)

	w := ts.do(t, http.MethodGet, "/v1/replicas/"+replicaID+"/content", nil)
	expectErrorCode(t, w, http.StatusConflict, ErrCodeReplicaNotVerified)

	if w := ts.do(t, http.MethodPost, "/v1/replicas/"+replicaID+"/verify", nil); w.Code != http.StatusOK {
		t.Fatalf("verify status: %d (%s)", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/v1/replicas/"+replicaID+"/content", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if w.Body.String() != "hello world" {
		t.Fatalf("unexpected content %q", w.Body.String())
	}
	if got := w.Header().Get("Content-Length"); got != "11" {
		t.Fatalf("expected content length 11, got %q", got)
	}
	if got := w.Header().Get("Content-Type"); got != fallbackContentType {
		t.Fatalf("expected %s, got %q", fallbackContentType, got)
	}
}

func TestReplicaContent_MissingBytesIsUnavailable(t *testing.T) {
	ts := newTestServer(t)
	md5sum, _ := checksums("hello world")
	_, replicaID := ts.createHello(t, md5sum)
	if w := ts.do(t, http.MethodPost, "/v1/replicas/"+replicaID+"/verify", nil); w.Code != http.StatusOK {
		t.Fatalf("verify status: %d", w.Code)
	}
	if err := os.Remove(filepath.Join(ts.root, "hello.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	w := ts.do(t, http.MethodGet, "/v1/replicas/"+replicaID+"/content", nil)
	expectErrorCode(t, w, http.StatusBadGateway, ErrCodeReplicaUnavailable)
}

func TestUpdateReplica_MoveClearsVerified(t *testing.T) {
	ts := newTestServer(t)
	md5sum, _ := checksums("hello world")
	_, replicaID := ts.createHello(t, md5sum)
	if w := ts.do(t, http.MethodPost, "/v1/replicas/"+replicaID+"/verify", nil); w.Code != http.StatusOK {
		t.Fatalf("verify status: %d", w.Code)
	}

	ts.writeFile(t, "moved/hello.txt", "hello world")
	moved := "moved/hello.txt"
	w := ts.do(t, http.MethodPatch, "/v1/replicas/"+replicaID, api.ReplicaUpdateRequest{URL: &moved})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	got := decodeBody[api.ReplicaResponse](t, w)
	if got.Verified {
		t.Fatal("moved replica must not stay verified")
	}
	if got.URL != moved {
		t.Fatalf("expected url %q, got %q", moved, got.URL)
	}
}

func TestDeleteReplica(t *testing.T) {
	t.Run("local removes bytes and record", func(t *testing.T) {
		ts := newTestServer(t)
		md5sum, _ := checksums("hello world")
		_, replicaID := ts.createHello(t, md5sum)

		w := ts.do(t, http.MethodDelete, "/v1/replicas/"+replicaID, nil)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d (%s)", w.Code, w.Body.String())
		}
		if _, err := os.Stat(filepath.Join(ts.root, "hello.txt")); !os.IsNotExist(err) {
			t.Fatalf("expected file removed, stat err=%v", err)
		}
		w = ts.do(t, http.MethodGet, "/v1/replicas/"+replicaID, nil)
		expectErrorCode(t, w, http.StatusNotFound, ErrCodeReplicaNotFound)
	})

	t.Run("remote is refused", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(t, http.MethodPost, "/v1/datafiles", api.DatafileCreateRequest{
			Filename: "remote.bin",
			Replicas: []api.ReplicaSpec{{URL: "https://example.org/remote.bin"}},
		})
		created := decodeBody[api.DatafileResponse](t, w)
		replicaID := created.Replicas[0].ID

		w = ts.do(t, http.MethodDelete, "/v1/replicas/"+replicaID, nil)
		expectErrorCode(t, w, http.StatusConflict, ErrCodeRemoteDelete)

		if w := ts.do(t, http.MethodGet, "/v1/replicas/"+replicaID, nil); w.Code != http.StatusOK {
			t.Fatalf("expected replica kept, got %d", w.Code)
		}
	})
}

func TestIngest(t *testing.T) {
	ts := newTestServer(t)
	md5sum, sha512sum := checksums("hello world")

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest?filename=greeting.txt", strings.NewReader("hello world"))
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	resp := decodeBody[api.IngestResponse](t, w)
	if !resp.Replica.Verified {
		t.Fatal("expected ingested replica to be verified")
	}
	if resp.Datafile.MD5Sum != md5sum || resp.Datafile.SHA512Sum != sha512sum || resp.Datafile.Size != "11" {
		t.Fatalf("unexpected datafile: %+v", resp.Datafile)
	}
	raw, err := os.ReadFile(filepath.Join(ts.root, "greeting.txt"))
	if err != nil || string(raw) != "hello world" {
		t.Fatalf("expected committed file, got %q err=%v", raw, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/ingest?filename=greeting.txt", strings.NewReader("other"))
	w = httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	expectErrorCode(t, w, http.StatusConflict, ErrCodeFileExists)

	req = httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader("x"))
	w = httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	expectErrorCode(t, w, http.StatusBadRequest, ErrCodeMissingRequired)
}

func TestListReplicas_Filters(t *testing.T) {
	ts := newTestServer(t)
	md5sum, _ := checksums("hello world")
	created, replicaID := ts.createHello(t, md5sum)
	if w := ts.do(t, http.MethodPost, "/v1/replicas", api.ReplicaCreateRequest{DatafileID: created.ID, URL: "copy.txt"}); w.Code != http.StatusCreated {
		t.Fatalf("create replica: %d (%s)", w.Code, w.Body.String())
	}
	if w := ts.do(t, http.MethodPost, "/v1/replicas/"+replicaID+"/verify", nil); w.Code != http.StatusOK {
		t.Fatalf("verify status: %d", w.Code)
	}

	w := ts.do(t, http.MethodGet, "/v1/replicas?verified=true", nil)
	verified := decodeBody[[]api.ReplicaResponse](t, w)
	if len(verified) != 1 || verified[0].ID != replicaID {
		t.Fatalf("unexpected verified listing: %+v", verified)
	}

	w = ts.do(t, http.MethodGet, "/v1/replicas?datafile_id="+created.ID+"&limit=1", nil)
	if got := decodeBody[[]api.ReplicaResponse](t, w); len(got) != 1 {
		t.Fatalf("expected 1 replica with limit, got %d", len(got))
	}

	w = ts.do(t, http.MethodGet, "/v1/replicas?verified=maybe", nil)
	expectErrorCode(t, w, http.StatusBadRequest, ErrCodeInvalidQuery)
}

func TestInfoAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	md5sum, _ := checksums("hello world")
	_, replicaID := ts.createHello(t, md5sum)
	ts.do(t, http.MethodPost, "/v1/replicas/"+replicaID+"/verify", nil)

	w := ts.do(t, http.MethodGet, "/v1/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	info := decodeBody[api.InfoResponse](t, w)
	if info.SchemaVersion == 0 {
		t.Fatal("expected schema version")
	}
	if info.FileStorePath != ts.root {
		t.Fatalf("expected file store %q, got %q", ts.root, info.FileStorePath)
	}

	w = ts.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `replicas_verifications_total{reason="ok"} 1`) {
		t.Fatalf("expected verification counter in metrics output:\n%s", w.Body.String())
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "REPLICAS_HTTP_TIMEOUT"
	apiTokenEnvKey     = "REPLICAS_API_TOKEN"
)

// Client is a simple HTTP client for the replicas API.
type Client struct {
	baseURL   string
	http      *http.Client
	authToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: httpTimeoutFromEnv()},
		authToken: strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

func (c *Client) CreateDatafile(ctx context.Context, req DatafileCreateRequest) (DatafileResponse, error) {
	var resp DatafileResponse
	err := c.do(ctx, http.MethodPost, "/v1/datafiles", nil, req, &resp)
	return resp, err
}

func (c *Client) GetDatafile(ctx context.Context, id string) (DatafileResponse, error) {
	var resp DatafileResponse
	err := c.do(ctx, http.MethodGet, "/v1/datafiles/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) ListDatafileReplicas(ctx context.Context, id string) ([]ReplicaResponse, error) {
	var resp []ReplicaResponse
	err := c.do(ctx, http.MethodGet, "/v1/datafiles/"+url.PathEscape(id)+"/replicas", nil, nil, &resp)
	return resp, err
}

func (c *Client) CreateReplica(ctx context.Context, req ReplicaCreateRequest) (ReplicaResponse, error) {
	var resp ReplicaResponse
	err := c.do(ctx, http.MethodPost, "/v1/replicas", nil, req, &resp)
	return resp, err
}

func (c *Client) ListReplicas(ctx context.Context, query url.Values) ([]ReplicaResponse, error) {
	var resp []ReplicaResponse
	err := c.do(ctx, http.MethodGet, "/v1/replicas", query, nil, &resp)
	return resp, err
}

func (c *Client) GetReplica(ctx context.Context, id string) (ReplicaResponse, error) {
	var resp ReplicaResponse
	err := c.do(ctx, http.MethodGet, "/v1/replicas/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) UpdateReplica(ctx context.Context, id string, req ReplicaUpdateRequest) (ReplicaResponse, error) {
	var resp ReplicaResponse
	err := c.do(ctx, http.MethodPatch, "/v1/replicas/"+url.PathEscape(id), nil, req, &resp)
	return resp, err
}

func (c *Client) VerifyReplica(ctx context.Context, id string, req VerifyRequest) (VerifyResponse, error) {
	var resp VerifyResponse
	err := c.doWith(ctx, c.streamingClient(), http.MethodPost, "/v1/replicas/"+url.PathEscape(id)+"/verify", nil, req, &resp)
	return resp, err
}

func (c *Client) DeleteReplica(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/replicas/"+url.PathEscape(id), nil, nil, nil)
}

// ReplicaContent streams a verified replica's bytes into w.
func (c *Client) ReplicaContent(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/replicas/"+url.PathEscape(id)+"/content", nil)
	if err != nil {
		return 0, err
	}
	c.setAuthHeader(req)

	resp, err := c.streamingClient().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}

// Ingest uploads body into the server's file store as a new datafile.
func (c *Client) Ingest(ctx context.Context, filename, name string, body io.Reader) (IngestResponse, error) {
	var resp IngestResponse
	query := url.Values{}
	query.Set("filename", filename)
	if name != "" {
		query.Set("name", name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ingest?"+query.Encode(), body)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	c.setAuthHeader(req)

	httpResp, err := c.streamingClient().Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

// streamingClient drops the request timeout for calls whose duration
// depends on the size of the replica.
func (c *Client) streamingClient() *http.Client {
	clone := *c.http
	clone.Timeout = 0
	return &clone
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	return c.doWith(ctx, c.http, method, path, query, body, out)
}

func (c *Client) doWith(ctx context.Context, hc *http.Client, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuthHeader(req)

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Message:   errResp.Error,
		}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.authToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}

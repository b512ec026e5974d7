package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pixora/internal/artifacts"
	"pixora/internal/modelstore"
	"pixora/internal/sysinfo"
)

// ErrAPIUnavailable indicates the daemon could not be reached.
var ErrAPIUnavailable = errors.New("pixora API unavailable")

// RequestIDHeader carries the correlation id between client and daemon.
const RequestIDHeader = "X-Request-Id"

// StatusError is returned for non-2xx replies.
type StatusError struct {
	Code    int
	Kind    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("api returned status %d (%s): %s", e.Code, e.Kind, e.Message)
	}
	return fmt.Sprintf("api returned status %d: %s", e.Code, e.Message)
}

// Client talks to a running daemon over its loopback HTTP API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// NewClient returns a client for bind ("host:port" or a URL). An empty bind
// yields a nil client whose calls fail with ErrAPIUnavailable. A non-empty
// token is sent as a bearer credential.
func NewClient(bind, token string, timeout time.Duration) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:  base,
		http:  &http.Client{Timeout: timeout},
		token: strings.TrimSpace(token),
	}, nil
}

// Health checks that the daemon answers.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &out)
	return out, err
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Model fetches the model file status.
func (c *Client) Model(ctx context.Context) (modelstore.Status, error) {
	var out modelstore.Status
	err := c.do(ctx, http.MethodGet, "/api/model", nil, nil, &out)
	return out, err
}

// Artifacts lists tracked artifacts.
func (c *Client) Artifacts(ctx context.Context) ([]artifacts.Artifact, error) {
	var out ArtifactListResponse
	if err := c.do(ctx, http.MethodGet, "/api/artifacts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Artifacts, nil
}

// DeleteArtifacts discards the given tracked artifacts.
func (c *Client) DeleteArtifacts(ctx context.Context, paths []string) (int, error) {
	var out DeleteArtifactsResponse
	err := c.do(ctx, http.MethodPost, "/api/artifacts/delete", nil, DeleteArtifactsRequest{Paths: paths}, &out)
	return out.Removed, err
}

// DeleteAllArtifacts discards every tracked artifact.
func (c *Client) DeleteAllArtifacts(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/artifacts", nil, nil, nil)
}

// Persist copies a tracked artifact to dest.
func (c *Client) Persist(ctx context.Context, path, dest string) (PersistResponse, error) {
	var out PersistResponse
	err := c.do(ctx, http.MethodPost, "/api/artifacts/persist", nil, PersistRequest{Path: path, Destination: dest}, &out)
	return out, err
}

// Process runs the pipeline on a data URL.
func (c *Client) Process(ctx context.Context, req ProcessRequest) (ProcessResponse, error) {
	var out ProcessResponse
	err := c.do(ctx, http.MethodPost, "/api/process", nil, req, &out)
	return out, err
}

// History fetches up to limit recent runs.
func (c *Client) History(ctx context.Context, limit int) (HistoryResponse, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var out HistoryResponse
	err := c.do(ctx, http.MethodGet, "/api/history", values, nil, &out)
	return out, err
}

// System fetches a host snapshot.
func (c *Client) System(ctx context.Context) (sysinfo.Info, error) {
	var out sysinfo.Info
	err := c.do(ctx, http.MethodGet, "/api/system", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if jsonErr := json.Unmarshal(raw, &payload); jsonErr != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{Code: resp.StatusCode, Kind: payload.Kind, Message: payload.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsUnavailable reports whether err means the daemon is not reachable.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}

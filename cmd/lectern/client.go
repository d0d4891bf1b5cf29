package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"lectern/internal/api"
)

// apiClient talks to the daemon's HTTP API.
type apiClient struct {
	address string
	base    string
	http    *http.Client
}

func newAPIClient(address string) *apiClient {
	return &apiClient{
		address: address,
		base:    "http://" + address,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) Submit(ctx context.Context, path, owner string) (api.JobView, error) {
	body, err := json.Marshal(map[string]string{"path": path, "owner": owner})
	if err != nil {
		return api.JobView{}, err
	}
	var view api.JobView
	err = c.do(ctx, http.MethodPost, "/api/jobs", body, &view)
	return view, err
}

func (c *apiClient) Job(ctx context.Context, id string) (api.JobView, error) {
	var view api.JobView
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &view)
	return view, err
}

func (c *apiClient) List(ctx context.Context, status string) ([]api.JobView, error) {
	path := "/api/jobs"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var views []api.JobView
	err := c.do(ctx, http.MethodGet, path, nil, &views)
	return views, err
}

func (c *apiClient) Result(ctx context.Context, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id)+"/result", nil, &raw)
	return raw, err
}

func (c *apiClient) Cancel(ctx context.Context, id string) (api.JobView, error) {
	var view api.JobView
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &view)
	return view, err
}

func (c *apiClient) Retry(ctx context.Context, id string) (api.JobView, error) {
	var view api.JobView
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/retry", nil, &view)
	return view, err
}

// Health returns the raw health payload and whether the daemon reported
// itself ready.
func (c *apiClient) Health(ctx context.Context) (map[string]any, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/health", nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, wrapDialError(err, c.address)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("decode health response: %w", err)
	}
	return payload, resp.StatusCode == http.StatusOK, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapDialError(err, c.address)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s", payload.Error)
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}

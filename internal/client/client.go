// Package client is an HTTP client for a running ruiji server.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hyperjump/ruiji/internal/models"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

// Client talks to the ruiji HTTP API.
type Client struct {
	http *resty.Client
}

// New creates a client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)
	return &Client{http: c}
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, result interface{}) error {
	req := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&errorBody{})
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{StatusCode: resp.StatusCode()}
		if eb, ok := resp.Error().(*errorBody); ok {
			apiErr.Message = eb.Error
		}
		return apiErr
	}
	return nil
}

// StartJob asks the server to embed folder. extensions are added to the server defaults.
func (c *Client) StartJob(ctx context.Context, folder string, extensions []string) (*models.JobResponse, error) {
	var out models.JobResponse
	req := models.JobRequest{Folder: folder, Extensions: extensions}
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Progress returns the current job progress.
func (c *Client) Progress(ctx context.Context) (*models.ProgressResponse, error) {
	var out models.ProgressResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/progress", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func thresholdQuery(threshold *float64) map[string]string {
	q := map[string]string{}
	if threshold != nil {
		q["threshold"] = strconv.FormatFloat(*threshold, 'g', -1, 64)
	}
	return q
}

// Clusters returns similarity groups. A nil threshold uses the server default.
func (c *Client) Clusters(ctx context.Context, threshold *float64) (*models.ClustersResponse, error) {
	var out models.ClustersResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/clusters", thresholdQuery(threshold), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Unclustered returns the images outside every cluster.
func (c *Client) Unclustered(ctx context.Context, threshold *float64, sortBy string) (*models.UnclusteredResponse, error) {
	q := thresholdQuery(threshold)
	if sortBy != "" {
		q["sort_by"] = sortBy
	}
	var out models.UnclusteredResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/unclustered", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export copies the selected images into the export folder.
func (c *Client) Export(ctx context.Context, selected []string) (*models.ExportResponse, error) {
	var out models.ExportResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/export", nil, models.ExportRequest{Selected: selected}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Failures lists files the current job could not embed.
func (c *Client) Failures(ctx context.Context) (*models.FailuresResponse, error) {
	var out models.FailuresResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/failures", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History lists up to limit recent runs. limit <= 0 uses the server default.
func (c *Client) History(ctx context.Context, limit int) (*models.HistoryResponse, error) {
	q := map[string]string{}
	if limit > 0 {
		q["limit"] = strconv.Itoa(limit)
	}
	var out models.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/history", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns nil when the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.do(ctx, http.MethodGet, "/health", nil, nil, &out)
}

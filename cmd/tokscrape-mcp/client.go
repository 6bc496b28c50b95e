package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/use-agent/tokscrape/models"
)

// apiClient talks to a running tokscrape API.
type apiClient struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
}

func newAPIClient(baseURL, apiKey string) *apiClient {
	return &apiClient{
		baseURL:      baseURL,
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 30 * time.Second},
		pollInterval: 2 * time.Second,
	}
}

// apiError is a non-2xx response decoded from the API's error envelope.
type apiError struct {
	status int
	detail *models.ErrorDetail
}

func (e *apiError) Error() string {
	if e.detail != nil {
		return fmt.Sprintf("[%s] %s", e.detail.Code, e.detail.Message)
	}
	return fmt.Sprintf("API returned status %d", e.status)
}

func (c *apiClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var errResp models.ErrorResponse
		_ = json.Unmarshal(data, &errResp)
		return &apiError{status: resp.StatusCode, detail: errResp.Error}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *apiClient) submitScrape(ctx context.Context, url string) (*models.ScrapeAccepted, error) {
	var out models.ScrapeAccepted
	err := c.do(ctx, http.MethodPost, "/api/scrape", models.ScrapeRequest{URL: url}, &out)
	return &out, err
}

func (c *apiClient) submitBatch(ctx context.Context, urls []string) (*models.BatchAccepted, error) {
	var out models.BatchAccepted
	err := c.do(ctx, http.MethodPost, "/api/scrape/batch", models.BatchRequest{URLs: urls}, &out)
	return &out, err
}

func (c *apiClient) job(ctx context.Context, id string) (*models.Job, error) {
	var out models.Job
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+id, nil, &out)
	return &out, err
}

func (c *apiClient) status(ctx context.Context) (*models.StatusResponse, error) {
	var out models.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return &out, err
}

// waitJob polls until the job reaches a terminal status or ctx is done.
func (c *apiClient) waitJob(ctx context.Context, id string) (*models.Job, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.job(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Finished() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

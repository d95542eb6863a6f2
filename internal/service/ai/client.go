// Package ai talks to the remote vision-analysis service. Each call is a
// single round trip; retry policy belongs to the caller.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"visionbridge/internal/dto"
	"visionbridge/internal/model"
)

// UnknownMethod labels results whose service did not name its method.
const UnknownMethod = "Unknown"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Client is the HTTP adapter of the analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a client for baseURL; timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Analyze submits one encoded frame and returns the detection result.
func (c *Client) Analyze(ctx context.Context, img model.EncodedImage) (model.DetectionResult, error) {
	var resp dto.AnalyzeFrameResponse
	if err := c.do(ctx, http.MethodPost, "/ai/analyze-frame", dto.AnalyzeFrameRequest{Image: img.DataURL()}, &resp); err != nil {
		return model.DetectionResult{}, err
	}

	// The service reports its own failures in a 200 body.
	if resp.Status == "error" {
		return model.DetectionResult{}, &Error{Kind: KindServer, StatusCode: http.StatusOK, Message: resp.Message}
	}

	return resultFromResponse(resp, c.now()), nil
}

// Ping probes the service root.
func (c *Client) Ping(ctx context.Context) (dto.RootResponse, error) {
	var resp dto.RootResponse
	err := c.do(ctx, http.MethodGet, "/", nil, &resp)
	return resp, err
}

// Status fetches the service capabilities.
func (c *Client) Status(ctx context.Context) (dto.StatusResponse, error) {
	var resp dto.StatusResponse
	err := c.do(ctx, http.MethodGet, "/ai/status", nil, &resp)
	return resp, err
}

// Test runs the manual diagnostic probe.
func (c *Client) Test(ctx context.Context) (dto.TestResponse, error) {
	var resp dto.TestResponse
	err := c.do(ctx, http.MethodGet, "/ai/test", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Kind: KindServer, StatusCode: resp.StatusCode, Message: serverDetail(data)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindServer, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

// resultFromResponse applies the defaults for missing fields.
func resultFromResponse(resp dto.AnalyzeFrameResponse, at time.Time) model.DetectionResult {
	objects := resp.Objects
	if objects == nil {
		objects = []string{}
	}

	count := 0
	if resp.ObjectCount != nil && *resp.ObjectCount > 0 {
		count = *resp.ObjectCount
	}

	method := resp.DetectionMethod
	if method == "" {
		method = UnknownMethod
	}

	return model.DetectionResult{
		Objects:         objects,
		ObjectCount:     count,
		DetectionMethod: method,
		Timestamp:       at,
	}
}

// serverDetail extracts a short message from an error body.
func serverDetail(body []byte) string {
	var payload struct {
		Detail  interface{} `json:"detail"`
		Message string      `json:"message"`
		Error   string      `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		case payload.Detail != nil:
			return fmt.Sprint(payload.Detail)
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

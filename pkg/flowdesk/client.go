// Package flowdesk is a Go client for the flowdesk-server HTTP API.
package flowdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flowdesk/internal/httpapi"
	"flowdesk/internal/live"
)

// Client provides a Go SDK for interacting with the flowdesk-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new flowdesk API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flowdesk: %d %s", e.Status, e.Message)
}

// LoadFlow replaces the desk batch with raw flow text.
func (c *Client) LoadFlow(ctx context.Context, raw string) (httpapi.FlowResponse, error) {
	var out httpapi.FlowResponse
	err := c.do(ctx, http.MethodPost, "/api/flow", nil, strings.NewReader(raw), &out)
	return out, err
}

// AppendFlow adds raw flow text to the desk batch.
func (c *Client) AppendFlow(ctx context.Context, raw string) (httpapi.FlowResponse, error) {
	var out httpapi.FlowResponse
	err := c.do(ctx, http.MethodPost, "/api/flow", url.Values{"mode": {"append"}}, strings.NewReader(raw), &out)
	return out, err
}

// ClearFlow drops the desk batch.
func (c *Client) ClearFlow(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/flow", nil, nil, nil)
}

// Report retrieves the full report. query may carry threshold, sort,
// order, spot, round, date and today.
func (c *Client) Report(ctx context.Context, query url.Values) (live.Report, error) {
	var out live.Report
	err := c.do(ctx, http.MethodGet, "/api/report", query, nil, &out)
	return out, err
}

// Sentiment retrieves the sentiment grouping and signal.
func (c *Client) Sentiment(ctx context.Context, query url.Values) (httpapi.SentimentResponse, error) {
	var out httpapi.SentimentResponse
	err := c.do(ctx, http.MethodGet, "/api/sentiment", query, nil, &out)
	return out, err
}

// Spot retrieves the desk's spot price.
func (c *Client) Spot(ctx context.Context) (httpapi.SpotResponse, error) {
	var out httpapi.SpotResponse
	err := c.do(ctx, http.MethodGet, "/api/spot", nil, nil, &out)
	return out, err
}

// SetSpot overrides the desk's spot price.
func (c *Client) SetSpot(ctx context.Context, price float64) (httpapi.SpotResponse, error) {
	body, err := json.Marshal(httpapi.SpotRequest{Price: price})
	if err != nil {
		return httpapi.SpotResponse{}, err
	}
	var out httpapi.SpotResponse
	err = c.do(ctx, http.MethodPut, "/api/spot", nil, bytes.NewReader(body), &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("flowdesk: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
		if method == http.MethodPut {
			req.Header.Set("Content-Type", "application/json")
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("flowdesk: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("flowdesk: decoding %s response: %w", path, err)
	}
	return nil
}

// Package ingest feeds externally observed interaction tuples into a
// running patina server. Delivery is at-least-once: the server answers
// replayed tuples with a duplicate no-op, so retrying a whole file is safe.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultServerURL = "http://127.0.0.1:37881"
	httpTimeout      = 10 * time.Second
)

// Client talks to the patina server.
type Client struct {
	http      *http.Client
	serverURL string
}

// NewClient creates an ingestion HTTP client.
// Respects the PATINA_URL env var, falls back to http://127.0.0.1:37881.
func NewClient() *Client {
	url := os.Getenv("PATINA_URL")
	if url == "" {
		url = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: url,
	}
}

// Post sends a POST request with JSON body. Returns response body.
func (c *Client) Post(path string, body []byte) ([]byte, int, error) {
	resp, err := c.http.Post(c.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, resp.StatusCode, fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, data)
	}
	return data, resp.StatusCode, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

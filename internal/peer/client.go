// Package peer is an HTTP adapter for a remote graph peer's node API. It lets
// the pipeline run against a peer's storage instead of a local database.
package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/blackmichael/graph-listings/internal/graph"
)

// Client reads and writes graph nodes over a peer's HTTP API. It satisfies
// the store interfaces, so it is interchangeable with the local node store.
type Client struct {
	base       string
	httpClient *http.Client
}

// NewClient creates a peer client for the given base URL.
func NewClient(base string) *Client {
	return &Client{
		base: base,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Get fetches a single node by soul. A missing node is (nil, nil).
func (c *Client) Get(ctx context.Context, soul string) (*graph.Node, error) {
	endpoint := fmt.Sprintf("%s/nodes/%s", c.base, url.PathEscape(soul))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("peer error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if len(respBody) == 0 || string(respBody) == "null" {
		return nil, nil
	}

	node := graph.NewNode(soul)
	if err := json.Unmarshal(respBody, node); err != nil {
		return nil, fmt.Errorf("unmarshal node: %w", err)
	}
	node.Soul = soul
	return node, nil
}

// Put sends a batch of node patches to the peer. The peer performs its own
// state-based merge, so patches are safe to replay.
func (c *Client) Put(ctx context.Context, data graph.Data) error {
	if len(data) == 0 {
		return nil
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.base+"/nodes", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("peer error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Close is a no-op; the client holds no persistent resources.
func (c *Client) Close() error {
	return nil
}

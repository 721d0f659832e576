package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the server does not know a collection.
var ErrNotFound = errors.New("collection not found")

// Client is a thin HTTP client for the diagnostics service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL (e.g. http://host:port).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Diagnostics runs one collection on the server and blocks until its
// snapshot is ready.
func (c *Client) Diagnostics(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if _, err := c.getJSON(ctx, "/diagnostics", &snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// StartCollection issues a collection without waiting for it.
func (c *Client) StartCollection(ctx context.Context) (StartResponse, error) {
	var resp StartResponse
	if err := c.postJSON(ctx, "/diagnostics/collections", struct{}{}, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// PollCollection asks once for the snapshot of collection id. It
// returns false while the collection is pending.
func (c *Client) PollCollection(ctx context.Context, id string) (Snapshot, bool, error) {
	var raw json.RawMessage
	status, err := c.getJSON(ctx, "/diagnostics/collections/"+url.PathEscape(id), &raw)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, false, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, false, err
	}
	if status == http.StatusAccepted {
		return nil, false, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// Collect starts a collection and polls it every interval until done.
func (c *Client) Collect(ctx context.Context, interval time.Duration) (Snapshot, error) {
	start, err := c.StartCollection(ctx)
	if err != nil {
		return nil, err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		snap, done, err := c.PollCollection(ctx, start.ID)
		if err != nil {
			return nil, err
		}
		if done {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Nodes fetches the node registry.
func (c *Client) Nodes(ctx context.Context) (NodesResponse, error) {
	var resp NodesResponse
	if _, err := c.getJSON(ctx, "/nodes", &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := checkStatus(res); err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	decoder := json.NewDecoder(res.Body)
	return decoder.Decode(out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if err := checkStatus(res); err != nil {
		return res.StatusCode, err
	}

	decoder := json.NewDecoder(res.Body)
	return res.StatusCode, decoder.Decode(out)
}

func checkStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(res.Body)
	msg := strings.TrimSpace(string(body))
	if msg != "" {
		return fmt.Errorf("request failed: %s: %s", res.Status, msg)
	}
	return fmt.Errorf("request failed: %s", res.Status)
}

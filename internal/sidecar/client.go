// Package sidecar is the thin local-HTTP client every component uses to
// reach the messaging/state relay. Keeping broker and state-store specifics
// on the far side of this boundary means application code never links a
// broker client library, and swapping the backing infrastructure is a
// deployment concern rather than a code change.
package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/events"
	"github.com/taskwire/taskwire/internal/platform/logger"
)

// TransportError indicates the sidecar was unreachable, timed out, or
// rejected a request. It is always handled locally: the publisher logs it
// and returns success to its caller, consumers surface it only as a retry
// decision. It never propagates to an end user.
type TransportError struct {
	Op         string // operation that failed, e.g. "publish"
	StatusCode int    // non-2xx response code, 0 for connection errors
	Err        error  // underlying error, nil when StatusCode is set
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sidecar %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sidecar %s failed: status %d", e.Op, e.StatusCode)
}

// Unwrap returns the underlying error, if any.
func (e *TransportError) Unwrap() error { return e.Err }

// Client talks to the local relay over HTTP. A successful Publish means
// "handed off to the relay", not "delivered downstream"; delivery semantics
// are at-least-once from there, which is why consumers deduplicate.
//
// The client performs no retries. Retry policy belongs to callers so that
// blocking behavior stays explicit at each call site.
type Client struct {
	baseURL        string
	pubsubName     string
	httpClient     *http.Client
	publishTimeout time.Duration
}

// NewClient creates a sidecar client from configuration.
func NewClient(cfg config.SidecarConfig) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		pubsubName:     cfg.PubsubName,
		httpClient:     &http.Client{},
		publishTimeout: time.Duration(cfg.PublishTimeoutMillis) * time.Millisecond,
	}
}

// Publish hands an envelope to the relay for the given topic. The call is
// bounded by the configured publish timeout and abandoned afterwards; it is
// never awaited indefinitely.
func (c *Client) Publish(ctx context.Context, topic string, env *events.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return &TransportError{Op: "publish", Err: fmt.Errorf("marshal envelope: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.publishTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/publish/%s/%s",
		c.baseURL, url.PathEscape(c.pubsubName), url.PathEscape(topic))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Op: "publish", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "publish", Err: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: "publish", StatusCode: resp.StatusCode}
	}

	logger.FromContext(ctx).Debug("event handed off to sidecar",
		"topic", topic,
		"event_id", env.EventID,
		"event_type", env.EventType)
	return nil
}

// GetState retrieves raw state for a key. A miss (404 or empty body)
// returns (nil, false, nil); callers treat it as absent, not as an error.
func (c *Client) GetState(ctx context.Context, store, key string) ([]byte, bool, error) {
	endpoint := fmt.Sprintf("%s/state/%s/%s", c.baseURL, url.PathEscape(store), url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, &TransportError{Op: "get state", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, &TransportError{Op: "get state", Err: err}
	}
	defer drainAndClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, false, &TransportError{Op: "get state", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &TransportError{Op: "get state", Err: err}
	}
	if len(body) == 0 {
		return nil, false, nil
	}
	return body, true, nil
}

// stateItem is one entry of the bulk state upsert body.
type stateItem struct {
	Key      string            `json:"key"`
	Value    json.RawMessage   `json:"value"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PutState stores a value under a key, with an optional TTL in seconds
// (zero means no expiry). Writes are last-writer-wins per key.
func (c *Client) PutState(ctx context.Context, store, key string, value []byte, ttlSeconds int) error {
	item := stateItem{Key: key, Value: value}
	if ttlSeconds > 0 {
		item.Metadata = map[string]string{
			"ttlInSeconds": fmt.Sprintf("%d", ttlSeconds),
		}
	}
	body, err := json.Marshal([]stateItem{item})
	if err != nil {
		return &TransportError{Op: "put state", Err: fmt.Errorf("marshal state: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/state/%s", c.baseURL, url.PathEscape(store))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Op: "put state", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "put state", Err: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: "put state", StatusCode: resp.StatusCode}
	}
	return nil
}

// DeleteState removes a key. Deleting an absent key is not an error.
func (c *Client) DeleteState(ctx context.Context, store, key string) error {
	endpoint := fmt.Sprintf("%s/state/%s/%s", c.baseURL, url.PathEscape(store), url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return &TransportError{Op: "delete state", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "delete state", Err: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusNotFound &&
		(resp.StatusCode < 200 || resp.StatusCode > 299) {
		return &TransportError{Op: "delete state", StatusCode: resp.StatusCode}
	}
	return nil
}

// drainAndClose discards any remaining body so the connection can be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

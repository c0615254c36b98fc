// Package qdrant provides a minimal client for the Qdrant REST API covering
// the operations the event vault needs: collection bootstrap, upserts,
// similarity queries, scrolling, and payload patches.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "http://localhost:6333"

// Distance metrics supported by the collections we create.
const (
	DistanceCosine = "Cosine"
	DistanceDot    = "Dot"
)

// Client performs point operations against a Qdrant instance.
type Client interface {
	// EnsureCollection creates the named collection if it does not exist.
	EnsureCollection(ctx context.Context, name string, vectorSize int, distance string) error
	// Upsert writes points into a collection.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Query runs a similarity search and returns ranked points with payloads.
	Query(ctx context.Context, collection string, vector []float64, limit int) ([]ScoredPoint, error)
	// Scroll pages through all points in a collection. A nil offset starts
	// from the beginning; the returned offset is nil when exhausted.
	Scroll(ctx context.Context, collection string, limit int, offset any) ([]ScoredPoint, any, error)
	// SetPayload merges payload keys into existing points.
	SetPayload(ctx context.Context, collection string, payload map[string]any, ids []string) error
}

// Point is a single vector plus payload for upsert.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float64 `json:"vector"`
	Payload any       `json:"payload"`
}

// ScoredPoint is a point returned by query or scroll. Score is zero for
// scrolled points.
type ScoredPoint struct {
	ID      any             `json:"id"`
	Score   float64         `json:"score"`
	Payload json.RawMessage `json:"payload"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default instance URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithAPIKey sets the api-key header for managed instances.
func WithAPIKey(key string) Option {
	return func(c *httpClient) {
		c.apiKey = key
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a Qdrant REST client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) EnsureCollection(ctx context.Context, name string, vectorSize int, distance string) error {
	var listing struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &listing); err != nil {
		return eris.Wrap(err, "qdrant: list collections")
	}
	for _, col := range listing.Result.Collections {
		if col.Name == name {
			return nil
		}
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": distance,
		},
	}
	if err := c.do(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		return eris.Wrapf(err, "qdrant: create collection %s", name)
	}
	return nil
}

func (c *httpClient) Upsert(ctx context.Context, collection string, points []Point) error {
	body := map[string]any{"points": points}
	if err := c.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil); err != nil {
		return eris.Wrapf(err, "qdrant: upsert into %s", collection)
	}
	return nil
}

func (c *httpClient) Query(ctx context.Context, collection string, vector []float64, limit int) ([]ScoredPoint, error) {
	body := map[string]any{
		"query":        vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result struct {
			Points []ScoredPoint `json:"points"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/query", body, &resp); err != nil {
		return nil, eris.Wrapf(err, "qdrant: query %s", collection)
	}
	return resp.Result.Points, nil
}

func (c *httpClient) Scroll(ctx context.Context, collection string, limit int, offset any) ([]ScoredPoint, any, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	if offset != nil {
		body["offset"] = offset
	}
	var resp struct {
		Result struct {
			Points         []ScoredPoint `json:"points"`
			NextPageOffset any           `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/scroll", body, &resp); err != nil {
		return nil, nil, eris.Wrapf(err, "qdrant: scroll %s", collection)
	}
	return resp.Result.Points, resp.Result.NextPageOffset, nil
}

func (c *httpClient) SetPayload(ctx context.Context, collection string, payload map[string]any, ids []string) error {
	body := map[string]any{
		"payload": payload,
		"points":  ids,
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/payload?wait=true", body, nil); err != nil {
		return eris.Wrapf(err, "qdrant: set payload in %s", collection)
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return eris.Wrap(err, fmt.Sprintf("unmarshal %s response", path))
		}
	}
	return nil
}

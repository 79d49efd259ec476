// Package bonfire is a client for the bonfire knowledge store: vector search
// over a bonfire and appending new chunks to it.
package bonfire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	searchPath   = "/vector_store/search"
	addChunkPath = "/vector_store/add_chunk"
	healthPath   = "/healthz"
)

type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// StatusError is a response the store answered with but did not accept.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bonfire: status %d", e.StatusCode)
	}
	return fmt.Sprintf("bonfire: status %d: %s", e.StatusCode, e.Message)
}

type searchRequest struct {
	BonfireId       string `json:"bonfire_id"`
	AdditionalQuery string `json:"additional_query"`
}

// Chunk is one record appended to a bonfire.
type Chunk struct {
	Content   string `json:"content"`
	BonfireId string `json:"bonfire_id"`
	Label     string `json:"label"`
}

type addChunkResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Search runs a vector search and returns the raw result records in the
// order the store produced them.
func (c *Client) Search(ctx context.Context, bonfireId, query string) ([]json.RawMessage, error) {
	resp, body, err := c.post(ctx, searchPath, searchRequest{
		BonfireId:       bonfireId,
		AdditionalQuery: query,
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return decodeRecords(body)
}

// AddChunk appends chunk to the store. The store must answer 200 with
// {"success": true}; anything else is a *StatusError.
func (c *Client) AddChunk(ctx context.Context, chunk Chunk) error {
	resp, body, err := c.post(ctx, addChunkPath, chunk)
	if err != nil {
		return err
	}

	isJSON := strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json")

	var parsed addChunkResponse
	if isJSON {
		if err := json.Unmarshal(body, &parsed); err != nil {
			return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
	}

	if resp.StatusCode == http.StatusOK && parsed.Success {
		return nil
	}

	msg := parsed.Message
	if !isJSON {
		msg = strings.TrimSpace(string(body))
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

// Health checks the store's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("bonfire not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, []byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("bonfire request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	return resp, body, nil
}

// decodeRecords accepts a JSON array (one record per element) or any other
// JSON value (a single record). null yields no records.
func decodeRecords(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []json.RawMessage{}, nil
	}

	if trimmed[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode search results: %w", err)
		}
		if records == nil {
			records = []json.RawMessage{}
		}
		return records, nil
	}

	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("decode search results: invalid JSON")
	}
	return []json.RawMessage{json.RawMessage(trimmed)}, nil
}

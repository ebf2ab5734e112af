// Package advice forwards spending summaries to an external text-generation
// endpoint and relays its answer.
package advice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is the wire payload for the external advice endpoint.
type Request struct {
	Query       string `json:"query"`
	DataContext string `json:"data_context"`
}

// Response is the external advice endpoint's answer.
type Response struct {
	Response string `json:"response"`
}

// Client produces an advice answer for a query over a serialized spending
// context.
type Client interface {
	Advise(ctx context.Context, query, dataContext string) (string, error)
}

// HTTPClient posts the query and data context to <base>/analyze. The model
// may take a while to answer, hence the generous fixed timeout.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTP advice client for the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Advise implements Client.
func (c *HTTPClient) Advise(ctx context.Context, query, dataContext string) (string, error) {
	payload, err := json.Marshal(Request{Query: query, DataContext: dataContext})
	if err != nil {
		return "", fmt.Errorf("Advise: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("Advise: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Advise: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &UpstreamError{StatusCode: resp.StatusCode, Detail: string(detail)}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("Advise: decoding response: %w", err)
	}
	return out.Response, nil
}

// UpstreamError reports a non-success status from the advice endpoint,
// preserving the status code for diagnostic handlers.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("advice endpoint returned %d: %s", e.StatusCode, e.Detail)
}

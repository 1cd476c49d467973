package httpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Doer is the minimal HTTP client surface, satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PostJSON marshals body, POSTs it and decodes a 2xx JSON response into
// out. Non-2xx responses become an *UpstreamError carrying the raw body.
func PostJSON(ctx context.Context, client Doer, url string, headers map[string]string, body interface{}, out interface{}) error {
	resp, err := send(ctx, client, url, headers, body, "")
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// DataHandler receives one SSE data payload with the "data: " prefix
// already removed. Returning an error aborts the stream.
type DataHandler func(data string) error

// StreamSSE POSTs body and feeds each SSE data line to handle until the
// body ends, the handler errors, or ctx is cancelled.
func StreamSSE(ctx context.Context, client Doer, url string, headers map[string]string, body interface{}, handle DataHandler) error {
	resp, err := send(ctx, client, url, headers, body, "text/event-stream")
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		if err := handle(strings.TrimPrefix(line, "data: ")); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// StreamLines POSTs body and feeds each non-empty response line to handle.
// Used for newline-delimited JSON streams.
func StreamLines(ctx context.Context, client Doer, url string, headers map[string]string, body interface{}, handle DataHandler) error {
	resp, err := send(ctx, client, url, headers, body, "application/x-ndjson")
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := handle(line); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func send(ctx context.Context, client Doer, url string, headers map[string]string, body interface{}, accept string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       respBody,
			URL:        url,
		}
	}

	return resp, nil
}

// GetJSON fetches url and decodes a 2xx JSON response into out.
func GetJSON(ctx context.Context, client Doer, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       respBody,
			URL:        url,
		}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// Package models provides detection model and risk assessor adapters: remote
// inference services reached over HTTP and a built-in baseline assessor.
package models

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

// maxResponseBytes bounds inference responses.
const maxResponseBytes = 8 << 20

type inferenceClient struct {
	http     *http.Client
	endpoint string
}

func newInferenceClient(endpoint string, timeout time.Duration, transport http.RoundTripper) inferenceClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return inferenceClient{
		http:     &http.Client{Timeout: timeout, Transport: transport},
		endpoint: strings.TrimSuffix(endpoint, "/"),
	}
}

// do sends body to path and decodes a JSON response into out.
func (c inferenceClient) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c inferenceClient) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(payload), out)
}

package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// HTTPStorage reads objects from a static HTTP(S) file server, optionally
// behind basic auth.
type HTTPStorage struct {
	client   *http.Client
	baseURL  string
	username string
	password string
}

// HTTPConfig holds HTTP storage configuration.
type HTTPConfig struct {
	BaseURL   string
	Timeout   time.Duration
	Username  string
	Password  string
	Transport http.RoundTripper
}

// NewHTTPStorage creates a new HTTP storage adapter.
func NewHTTPStorage(cfg HTTPConfig) *HTTPStorage {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	return &HTTPStorage{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
	}
}

// GetReader returns the response body for key.
func (s *HTTPStorage) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, http.MethodGet, key)
	if err != nil {
		return nil, storageErr("get", key, err, false)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, storageErr("get", key,
			fmt.Errorf("HTTP %d", resp.StatusCode), resp.StatusCode == http.StatusNotFound)
	}
	return resp.Body, nil
}

// Stat issues a HEAD request and reads Content-Length, Last-Modified and
// ETag. Headers the server omits are left zero.
func (s *HTTPStorage) Stat(ctx context.Context, key string) (output.StorageObject, error) {
	resp, err := s.do(ctx, http.MethodHead, key)
	if err != nil {
		return output.StorageObject{}, storageErr("stat", key, err, false)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return output.StorageObject{}, storageErr("stat", key,
			fmt.Errorf("HTTP %d", resp.StatusCode), resp.StatusCode == http.StatusNotFound)
	}

	obj := output.StorageObject{
		Key:  key,
		ETag: strings.Trim(strings.TrimPrefix(resp.Header.Get("ETag"), "W/"), `"`),
	}
	if resp.ContentLength >= 0 {
		obj.Size = resp.ContentLength
	}
	if t, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		obj.LastModified = t.UTC()
	}
	return obj, nil
}

func (s *HTTPStorage) do(ctx context.Context, method, key string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+"/"+strings.TrimPrefix(key, "/"), nil)
	if err != nil {
		return nil, err
	}
	if s.username != "" && s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}
	return s.client.Do(req)
}

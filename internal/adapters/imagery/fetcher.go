// Package imagery fetches satellite imagery over HTTP(S) or from the
// configured object storage.
package imagery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// Config controls image acquisition.
type Config struct {
	Timeout    time.Duration
	MaxRetries uint64
	MaxBytes   int64 // 0 means unlimited
	Transport  http.RoundTripper
}

// Fetcher implements output.ImageSource. http and https URLs are downloaded
// directly with retries; file, s3 and az URLs and bare keys are read from
// object storage.
type Fetcher struct {
	client     *http.Client
	storage    output.ObjectStorage
	maxRetries uint64
	maxBytes   int64
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

// NewFetcher creates a fetcher. storage may be nil, in which case only HTTP
// URLs are supported.
func NewFetcher(cfg Config, storage output.ObjectStorage, logger *slog.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Fetcher{
		client:     &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		storage:    storage,
		maxRetries: cfg.MaxRetries,
		maxBytes:   cfg.MaxBytes,
		logger:     logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
}

// ErrImageTooLarge is returned when an image exceeds the configured limit.
var ErrImageTooLarge = fmt.Errorf("image exceeds size limit: %w", domain.ErrInvalidInput)

// Fetch implements output.ImageSource.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, domain.SatelliteSource, error) {
	source := domain.DetectSatelliteSource(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, source, &domain.ValidationError{
			Field: "image_url", Value: rawURL, Constraint: "valid URL", Message: err.Error(),
		}
	}

	var data []byte
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		data, err = f.fetchHTTP(ctx, rawURL)
	default:
		data, err = f.fetchStorage(ctx, u)
	}
	if err != nil {
		return nil, source, err
	}
	return data, source, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	attempt := 0

	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("unexpected status code: %d (%s)", resp.StatusCode, resp.Status)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}

		data, err = f.readLimited(resp.Body)
		if errors.Is(err, ErrImageTooLarge) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		f.logger.Warn("image download failed, retrying",
			"url", rawURL,
			"attempt", attempt,
			"retry_in", wait,
			"error", err,
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), f.maxRetries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, &domain.StorageError{Operation: "fetch", Key: rawURL, Err: err}
	}
	return data, nil
}

func (f *Fetcher) fetchStorage(ctx context.Context, u *url.URL) ([]byte, error) {
	key := storageKey(u)
	if f.storage == nil {
		return nil, &domain.ValidationError{
			Field:      "image_url",
			Value:      u.String(),
			Constraint: "http(s) URL",
			Message:    "no object storage configured for non-HTTP image URLs",
		}
	}

	r, err := f.storage.GetReader(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	data, err := f.readLimited(r)
	if err != nil {
		return nil, &domain.StorageError{Operation: "fetch", Key: key, Err: err}
	}
	return data, nil
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	if f.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

// storageKey maps a URL onto an object key. The host of s3:// and az:// URLs
// names the bucket or container, which the configured backend already fixes.
func storageKey(u *url.URL) string {
	switch strings.ToLower(u.Scheme) {
	case "s3", "az", "azure", "gs":
		return strings.TrimPrefix(u.Path, "/")
	case "file":
		return strings.TrimPrefix(u.Host+u.Path, "/")
	default:
		return strings.TrimPrefix(u.Opaque+u.Path, "/")
	}
}

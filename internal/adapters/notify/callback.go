// Package notify delivers batch completion callbacks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config controls callback delivery.
type Config struct {
	Timeout    time.Duration
	MaxRetries uint64
	UserAgent  string
	Transport  http.RoundTripper
}

// HTTPNotifier implements output.CallbackNotifier by POSTing JSON.
type HTTPNotifier struct {
	client     *http.Client
	maxRetries uint64
	userAgent  string
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

// NewHTTPNotifier creates a notifier.
func NewHTTPNotifier(cfg Config, logger *slog.Logger) *HTTPNotifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "supplychain-lens"
	}
	return &HTTPNotifier{
		client:     &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		maxRetries: cfg.MaxRetries,
		userAgent:  cfg.UserAgent,
		logger:     logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
}

// Notify posts payload to url. 4xx responses other than 429 are not retried.
func (n *HTTPNotifier) Notify(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding callback payload: %w", err)
	}

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", n.userAgent)

		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		statusErr := fmt.Errorf("callback returned %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(statusErr)
		}
		return statusErr
	}

	notify := func(err error, wait time.Duration) {
		n.logger.Warn("callback delivery failed, retrying",
			"url", url,
			"attempt", attempt,
			"retry_in", wait,
			"error", err,
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(n.newBackOff(), n.maxRetries), ctx)
	return backoff.RetryNotify(op, b, notify)
}

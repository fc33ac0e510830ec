// Package search implements the two external lookup capabilities behind the
// Web Search and Wikipedia tools: DuckDuckGo's HTML endpoint and the
// MediaWiki query API. Neither needs an API key.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultUserAgent identifies NeuroSync to the remote services.
const DefaultUserAgent = "NeuroSync/1.0 (+https://github.com/jllopis/neurosync)"

const maxBody = 1 << 20

// Option configures a search client.
type Option func(*options)

type options struct {
	baseURL    string
	userAgent  string
	maxResults int
	lang       string
	client     *http.Client
}

func defaultOptions() options {
	return options{
		userAgent:  DefaultUserAgent,
		maxResults: 5,
		lang:       "en",
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL overrides the endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithMaxResults caps the number of results returned.
func WithMaxResults(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxResults = n
		}
	}
}

// WithLanguage selects the Wikipedia language edition.
func WithLanguage(lang string) Option {
	return func(o *options) {
		if lang != "" {
			o.lang = lang
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

func get(ctx context.Context, o options, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", o.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

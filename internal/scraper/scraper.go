// Package scraper acquires the visible text of web pages.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Fetcher returns the visible text content of the page at url.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// ErrNoContent is returned when a page loads but has no visible text.
var ErrNoContent = errors.New("no relevant content found")

// FetchError reports a failed content acquisition for URL.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if errors.Is(e.Err, ErrNoContent) {
		return "No relevant content found at URL: " + e.URL
	}
	return "Failed to fetch webpage content: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config drives the HTTP fetch session.
type Config struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

const defaultUserAgent = "Mozilla/5.0 (compatible; webpage-compliance/1.0)"

// HTTPFetcher downloads documents and extracts their body text. Only the
// document itself is requested; images, stylesheets, fonts, media and other
// sub-resources are never loaded.
//
// The underlying session is created on first use and released by Close; a
// later fetch re-creates it.
type HTTPFetcher struct {
	cfg Config

	mu     sync.Mutex
	client *http.Client
}

// NewHTTPFetcher applies defaults to cfg. No connection is opened yet.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 << 20
	}
	return &HTTPFetcher{cfg: cfg}
}

func (f *HTTPFetcher) session() *http.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxIdleConnsPerHost = 4
		f.client = &http.Client{Timeout: f.cfg.Timeout, Transport: transport}
		logrus.WithField("timeout", f.cfg.Timeout).Debug("fetch session initialized")
	}
	return f.client
}

// Close releases idle connections held by the session.
func (f *HTTPFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		f.client.CloseIdleConnections()
		f.client = nil
	}
	return nil
}

// FetchText loads url and returns its trimmed visible text.
func (f *HTTPFetcher) FetchText(ctx context.Context, url string) (string, error) {
	text, err := f.fetch(ctx, url)
	if err != nil {
		logrus.WithError(err).WithField("url", url).Error("fetch webpage content")
		return "", &FetchError{URL: url, Err: err}
	}
	return text, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.1")

	resp, err := f.session().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var text string
	if isPlainText(resp.Header.Get("Content-Type")) {
		text = strings.TrimSpace(string(body))
	} else {
		text, err = ExtractText(bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("parse html: %w", err)
		}
	}
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

func isPlainText(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/plain"
}

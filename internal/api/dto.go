package api

import (
	"net/url"
	"strings"
)

// ValidateRequest is the body of POST /compliance/validate.
type ValidateRequest struct {
	WebpageURL string `json:"webpageUrl"`
	PolicyURL  string `json:"policyUrl"`
}

// ErrorResponse is returned for every failed request. Messages lists every
// validation failure; Error repeats the first one.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Messages []string `json:"messages,omitempty"`
}

// ConfigResponse describes the active compliance wiring.
type ConfigResponse struct {
	Classifier     string `json:"classifier"`
	BatchSize      int    `json:"batch_size"`
	MaxAttempts    int    `json:"max_attempts"`
	PageCache      bool   `json:"page_cache"`
	RequestTimeout string `json:"request_timeout"`
}

// ValidationError carries all problems found in a request body.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// Validate trims both URLs and reports every problem found, webpage first.
// A missing URL also fails the URL check.
func (r *ValidateRequest) Validate() error {
	r.WebpageURL = strings.TrimSpace(r.WebpageURL)
	r.PolicyURL = strings.TrimSpace(r.PolicyURL)

	var msgs []string
	if r.WebpageURL == "" {
		msgs = append(msgs, "Webpage URL is required")
	}
	if !isWebURL(r.WebpageURL) {
		msgs = append(msgs, "The provided webpage URL is not valid")
	}
	if r.PolicyURL == "" {
		msgs = append(msgs, "Policy URL is required")
	}
	if !isWebURL(r.PolicyURL) {
		msgs = append(msgs, "The provided policy URL is not valid")
	}
	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

// isWebURL accepts absolute http and https URLs with a host; the fetcher
// speaks nothing else.
func isWebURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}

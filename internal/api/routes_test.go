package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webpage-compliance/internal/compliance"
	"webpage-compliance/internal/report"
	"webpage-compliance/internal/scraper"
	"webpage-compliance/internal/text"
)

type fakeChecker struct {
	calls    int
	deadline bool
	result   report.Report
	err      error
}

func (f *fakeChecker) CheckCompliance(ctx context.Context, _, _ string) (report.Report, error) {
	f.calls++
	_, f.deadline = ctx.Deadline()
	return f.result, f.err
}

func (f *fakeChecker) Settings() compliance.Settings {
	return compliance.Settings{Classifier: "fake", BatchSize: 1, MaxAttempts: 3}
}

func newTestRouter(t *testing.T, checker Checker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv, err := NewServer(Config{RequestTimeout: time.Minute}, checker)
	require.NoError(t, err)
	r, err := srv.Router()
	require.NoError(t, err)
	return r
}

func postValidate(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/compliance/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleValidateSuccess(t *testing.T) {
	checker := &fakeChecker{result: report.Aggregate([]report.Finding{
		{Sentence: "This is a test sentence.", Verdict: report.Compliant},
	})}
	r := newTestRouter(t, checker)

	rec := postValidate(r, `{"webpageUrl":"https://example.com","policyUrl":"https://example.com/policy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, checker.deadline)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.JSONEq(t, `{
		"complianceSummary": {
			"totalSentencesAnalyzed": 1,
			"compliantSentences": 1,
			"nonCompliantSentences": 0,
			"inconclusiveSentences": 0
		},
		"detailedResults": [
			{"sentenceNumber": 1, "sentence": "This is a test sentence.", "result": "Compliant"}
		]
	}`, rec.Body.String())
}

func TestHandleValidateRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		body string
		want []string
	}{
		{"malformed", `{`, nil},
		{"missing webpage", `{"policyUrl":"https://example.com"}`, []string{
			"Webpage URL is required",
			"The provided webpage URL is not valid",
		}},
		{"invalid webpage", `{"webpageUrl":"not a url","policyUrl":"https://example.com"}`, []string{
			"The provided webpage URL is not valid",
		}},
		{"ftp webpage", `{"webpageUrl":"ftp://example.com","policyUrl":"https://example.com"}`, []string{
			"The provided webpage URL is not valid",
		}},
		{"missing policy", `{"webpageUrl":"https://example.com","policyUrl":"  "}`, []string{
			"Policy URL is required",
			"The provided policy URL is not valid",
		}},
		{"invalid policy", `{"webpageUrl":"https://example.com","policyUrl":"https://"}`, []string{
			"The provided policy URL is not valid",
		}},
		{"both missing", `{}`, []string{
			"Webpage URL is required",
			"The provided webpage URL is not valid",
			"Policy URL is required",
			"The provided policy URL is not valid",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checker := &fakeChecker{}
			r := newTestRouter(t, checker)

			rec := postValidate(r, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			if tc.want == nil {
				assert.Equal(t, "invalid request body", resp.Error)
			} else {
				assert.Equal(t, tc.want[0], resp.Error)
				assert.Equal(t, tc.want, resp.Messages)
			}
			assert.Zero(t, checker.calls)
		})
	}
}

func TestHandleValidateErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{
			name:   "fetch failure",
			err:    &scraper.FetchError{URL: "https://example.com", Err: scraper.ErrNoContent},
			status: http.StatusBadRequest,
			msg:    "No relevant content found at URL: https://example.com",
		},
		{
			name:   "classifier failure",
			err:    &compliance.ClassifierError{Batch: 2, Err: errors.New("huggingface status 503")},
			status: http.StatusBadGateway,
			msg:    "huggingface status 503",
		},
		{
			name:   "deadline",
			err:    context.DeadlineExceeded,
			status: http.StatusGatewayTimeout,
			msg:    "context deadline exceeded",
		},
		{
			name:   "contract violation",
			err:    text.ErrInvalidChunkSize,
			status: http.StatusInternalServerError,
			msg:    "contract violation: chunk size must be positive",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(t, &fakeChecker{err: tc.err})

			rec := postValidate(r, `{"webpageUrl":"https://example.com","policyUrl":"https://example.com/p"}`)
			require.Equal(t, tc.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.msg, resp.Error)
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := newTestRouter(t, &fakeChecker{})
	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleConfig(t *testing.T) {
	r := newTestRouter(t, &fakeChecker{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"classifier": "fake",
		"batch_size": 1,
		"max_attempts": 3,
		"page_cache": false,
		"request_timeout": "1m0s"
	}`, rec.Body.String())
}

func TestNewServerRequiresChecker(t *testing.T) {
	_, err := NewServer(Config{}, nil)
	require.Error(t, err)
}

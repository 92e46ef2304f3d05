package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webpage-compliance/internal/report"
)

func TestVerdictForLabel(t *testing.T) {
	tests := []struct {
		label    string
		expected report.Verdict
	}{
		{"entailment", report.Compliant},
		{"contradiction", report.NonCompliant},
		{"neutral", report.Inconclusive},
		{"Entailment", report.Inconclusive},
		{"CONTRADICTION", report.Inconclusive},
		{"", report.Inconclusive},
		{"something-new", report.Inconclusive},
	}
	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			assert.Equal(t, tc.expected, VerdictForLabel(tc.label))
		})
	}
}

func TestPremiseHypothesis(t *testing.T) {
	assert.Equal(t,
		"premise: This is a test sentence., hypothesis: This is a policy.",
		PremiseHypothesis("This is a test sentence.", "This is a policy."))
}

func TestHuggingFaceClassifyBatch(t *testing.T) {
	var got zeroShotRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/facebook/bart-large-mnli", r.URL.Path)
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"sequence": "a", "labels": ["entailment", "neutral", "contradiction"], "scores": [0.9, 0.07, 0.03]},
			{"sequence": "b", "labels": ["contradiction", "neutral", "entailment"], "scores": [0.8, 0.1, 0.1]},
			{"sequence": "c", "labels": ["neutral", "entailment", "contradiction"], "scores": [0.6, 0.3, 0.1]}
		]`))
	}))
	defer srv.Close()

	client := NewHuggingFaceClient(HuggingFaceConfig{Token: "hf-token", BaseURL: srv.URL + "/"})
	verdicts, err := client.ClassifyBatch(context.Background(), []string{"A.", "B.", "C."}, "Policy.")
	require.NoError(t, err)
	assert.Equal(t, []report.Verdict{report.Compliant, report.NonCompliant, report.Inconclusive}, verdicts)

	assert.Equal(t, []string{
		"premise: A., hypothesis: Policy.",
		"premise: B., hypothesis: Policy.",
		"premise: C., hypothesis: Policy.",
	}, got.Inputs)
	assert.Equal(t, []string{"entailment", "neutral", "contradiction"}, got.Parameters.CandidateLabels)
}

func TestHuggingFaceResponseShapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected report.Verdict
	}{
		{"single object", `{"sequence": "x", "labels": ["contradiction"], "scores": [0.7]}`, report.NonCompliant},
		{"label score pairs", `[{"label": "neutral", "score": 0.2}, {"label": "entailment", "score": 0.7}]`, report.Compliant},
		{"unknown top label", `[{"sequence": "x", "labels": ["maybe", "entailment"], "scores": [0.6, 0.4]}]`, report.Inconclusive},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewHuggingFaceClient(HuggingFaceConfig{BaseURL: srv.URL})
			verdicts, err := client.ClassifyBatch(context.Background(), []string{"x"}, "p")
			require.NoError(t, err)
			assert.Equal(t, []report.Verdict{tc.expected}, verdicts)
		})
	}
}

func TestHuggingFaceErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"Model is currently loading"}`))
		}))
		defer srv.Close()

		_, err := NewHuggingFaceClient(HuggingFaceConfig{BaseURL: srv.URL}).ClassifyBatch(context.Background(), []string{"x"}, "p")
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
		assert.Contains(t, err.Error(), "Model is currently loading")
	})

	t.Run("count mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"labels": ["entailment"], "scores": [1]}]`))
		}))
		defer srv.Close()

		_, err := NewHuggingFaceClient(HuggingFaceConfig{BaseURL: srv.URL}).ClassifyBatch(context.Background(), []string{"x", "y"}, "p")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 results for 2 inputs")
	})

	t.Run("empty batch", func(t *testing.T) {
		_, err := NewHuggingFaceClient(HuggingFaceConfig{}).ClassifyBatch(context.Background(), nil, "p")
		require.ErrorIs(t, err, ErrEmptyBatch)
	})

	invalid := map[string]string{
		"error object":     `{"error": "Model is currently loading", "estimated_time": 20}`,
		"empty object":     `{}`,
		"empty item":       `[{}]`,
		"empty labels":     `[{"sequence": "x", "labels": [], "scores": []}]`,
		"error in list":    `[{"error": "overloaded"}]`,
		"unlabelled pairs": `[{"label": "", "score": 0.9}]`,
	}
	for name, body := range invalid {
		body := body
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			verdicts, err := NewHuggingFaceClient(HuggingFaceConfig{BaseURL: srv.URL}).ClassifyBatch(context.Background(), []string{"x"}, "p")
			require.ErrorIs(t, err, ErrInvalidOutput)
			assert.Nil(t, verdicts)
		})
	}
}

func TestChatClientClassifyBatch(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		content := "```json\n{\"results\": [{\"label\": \"contradiction\", \"score\": 0.8}, {\"label\": \"entailment\", \"score\": 1.4}]}\n```"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
	}))
	defer srv.Close()

	client, err := NewChatClient(ChatConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "test-model"})
	require.NoError(t, err)
	assert.Equal(t, "chat:test-model", client.Name())

	verdicts, err := client.ClassifyBatch(context.Background(), []string{"One.", "Two."}, "Policy.")
	require.NoError(t, err)
	assert.Equal(t, []report.Verdict{report.NonCompliant, report.Compliant}, verdicts)

	assert.Equal(t, "test-model", payload["model"])
	messages, ok := payload["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)["content"].(string)
	assert.True(t, strings.Contains(user, "1. premise: One., hypothesis: Policy."))
	assert.True(t, strings.Contains(user, "2. premise: Two., hypothesis: Policy."))
}

func TestNewChatClientRequiresKey(t *testing.T) {
	_, err := NewChatClient(ChatConfig{})
	require.ErrorIs(t, err, ErrDisabled)
}

type stubClassifier struct {
	name     string
	verdicts []report.Verdict
	err      error
	calls    int
}

func (s *stubClassifier) Name() string { return s.name }

func (s *stubClassifier) ClassifyBatch(context.Context, []string, string) ([]report.Verdict, error) {
	s.calls++
	return s.verdicts, s.err
}

func TestWithFallback(t *testing.T) {
	primaryErr := errors.New("primary down")
	fallbackErr := errors.New("fallback down")

	t.Run("primary succeeds", func(t *testing.T) {
		primary := &stubClassifier{name: "p", verdicts: []report.Verdict{report.Compliant}}
		fallback := &stubClassifier{name: "f"}
		got, err := WithFallback(primary, fallback).ClassifyBatch(context.Background(), []string{"x"}, "p")
		require.NoError(t, err)
		assert.Equal(t, []report.Verdict{report.Compliant}, got)
		assert.Zero(t, fallback.calls)
	})

	t.Run("fallback used", func(t *testing.T) {
		primary := &stubClassifier{name: "p", err: primaryErr}
		fallback := &stubClassifier{name: "f", verdicts: []report.Verdict{report.NonCompliant}}
		chain := WithFallback(primary, fallback)
		assert.Equal(t, "p|f", chain.Name())
		got, err := chain.ClassifyBatch(context.Background(), []string{"x"}, "p")
		require.NoError(t, err)
		assert.Equal(t, []report.Verdict{report.NonCompliant}, got)
	})

	t.Run("both fail", func(t *testing.T) {
		primary := &stubClassifier{name: "p", err: primaryErr}
		fallback := &stubClassifier{name: "f", err: fallbackErr}
		_, err := WithFallback(primary, fallback).ClassifyBatch(context.Background(), []string{"x"}, "p")
		require.ErrorIs(t, err, primaryErr)
		require.ErrorIs(t, err, fallbackErr)
	})

	t.Run("nil sides", func(t *testing.T) {
		only := &stubClassifier{name: "only"}
		assert.Same(t, only, WithFallback(only, nil))
		assert.Same(t, only, WithFallback(nil, only))
	})
}

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"webpage-compliance/internal/report"
)

// ChatConfig holds OpenAI-compatible chat completion parameters.
type ChatConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ChatClient classifies batches by asking a chat completion model to act as
// an NLI classifier over the same three labels as the zero-shot backend.
type ChatClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// NewChatClient constructs a ChatClient if the supplied configuration is valid.
func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ChatClient{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Name identifies the backend in logs.
func (c *ChatClient) Name() string {
	return "chat:" + c.model
}

// ClassifyBatch sends every premise/hypothesis pair of the batch in a single
// completion and expects one ranked result per pair back.
func (c *ChatClient) ClassifyBatch(ctx context.Context, sentences []string, policyText string) ([]report.Verdict, error) {
	if len(sentences) == 0 {
		return nil, ErrEmptyBatch
	}

	body, err := json.Marshal(c.buildPayload(sentences, policyText))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Backend: "openai", Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("openai empty response")
	}

	content := normalizeJSONBlock(decoded.Choices[0].Message.Content)
	if content == "" {
		return nil, errors.New("openai empty classification")
	}

	var parsed chatClassification
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parse ai response: %w", err)
	}
	results := make([]Result, len(parsed.Results))
	for i, item := range parsed.Results {
		results[i] = Result{
			Labels: []string{strings.TrimSpace(item.Label)},
			Scores: []float64{clampFloat(item.Score, 0, 1)},
		}
	}
	return verdictsFor("openai", results, len(sentences))
}

type chatClassification struct {
	Results []struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"results"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) buildPayload(sentences []string, policyText string) map[string]any {
	messages := []map[string]string{
		{
			"role":    "system",
			"content": "You are a natural language inference classifier. For every numbered input decide whether the premise is consistent with the hypothesis. Reply with a strict JSON object {\"results\": [{\"label\": ..., \"score\": ...}]} holding exactly one entry per input, in input order. label must be one of entailment, neutral, contradiction (lowercase). score is your confidence between 0 and 1. Emit nothing outside the JSON object.",
		},
		{
			"role":    "user",
			"content": buildUserPrompt(sentences, policyText),
		},
	}
	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": c.temperature,
	}
	if c.maxTokens > 0 {
		payload["max_tokens"] = c.maxTokens
	}
	return payload
}

func buildUserPrompt(sentences []string, policyText string) string {
	builder := &strings.Builder{}
	fmt.Fprintf(builder, "Candidate labels: %s\n", strings.Join(CandidateLabels, ", "))
	fmt.Fprintf(builder, "Inputs: %d\n", len(sentences))
	for i, s := range sentences {
		fmt.Fprintf(builder, "%d. %s\n", i+1, PremiseHypothesis(s, policyText))
	}
	return builder.String()
}

func normalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		trimmed = strings.TrimSuffix(trimmed, "```")
	}
	trimmed = strings.TrimSpace(trimmed)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}

func clampFloat(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return min
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

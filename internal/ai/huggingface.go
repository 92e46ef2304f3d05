package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"webpage-compliance/internal/report"
)

const (
	defaultHuggingFaceModel   = "facebook/bart-large-mnli"
	defaultHuggingFaceBaseURL = "https://router.huggingface.co/hf-inference"
	maxErrorBody              = 512
)

// HuggingFaceConfig configures the hosted zero-shot inference backend.
type HuggingFaceConfig struct {
	Token   string        `yaml:"token"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// HuggingFaceClient classifies batches with a zero-shot NLI model served by
// the Hugging Face inference API.
type HuggingFaceClient struct {
	httpClient *http.Client
	token      string
	model      string
	baseURL    string
}

// NewHuggingFaceClient applies defaults and builds a client. An empty token
// is allowed; anonymous calls are rate limited harder by the provider.
func NewHuggingFaceClient(cfg HuggingFaceConfig) *HuggingFaceClient {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultHuggingFaceModel
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultHuggingFaceBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HuggingFaceClient{
		httpClient: &http.Client{Timeout: timeout},
		token:      strings.TrimSpace(cfg.Token),
		model:      model,
		baseURL:    baseURL,
	}
}

// Name identifies the backend in logs.
func (c *HuggingFaceClient) Name() string {
	return "huggingface:" + c.model
}

type zeroShotRequest struct {
	Inputs     []string           `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
}

// ClassifyBatch submits the whole batch in one request.
func (c *HuggingFaceClient) ClassifyBatch(ctx context.Context, sentences []string, policyText string) ([]report.Verdict, error) {
	if len(sentences) == 0 {
		return nil, ErrEmptyBatch
	}

	inputs := make([]string, len(sentences))
	for i, s := range sentences {
		inputs[i] = PremiseHypothesis(s, policyText)
	}
	body, err := json.Marshal(zeroShotRequest{
		Inputs:     inputs,
		Parameters: zeroShotParameters{CandidateLabels: CandidateLabels},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+c.model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Backend: "huggingface", Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	results, err := decodeZeroShot(raw)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return verdictsFor("huggingface", results, len(sentences))
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// zeroShotItem is one decoded answer. The API reports failures such as a
// model still loading as {"error": ...} even with a 200 status.
type zeroShotItem struct {
	Result
	Error json.RawMessage `json:"error"`
}

// ErrInvalidOutput is returned for a 200 answer that carries no usable
// classification.
var ErrInvalidOutput = errors.New("invalid inference output")

// decodeZeroShot accepts the shapes the inference API answers with: a list
// of {sequence, labels, scores}, a single such object, or, for one input,
// a ranked list of {label, score}. Items carrying an error or no labels
// are rejected.
func decodeZeroShot(raw []byte) ([]Result, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}

	if trimmed[0] == '{' {
		r, err := decodeItem(trimmed)
		if err != nil {
			return nil, err
		}
		return []Result{r}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []Result{}, nil
	}

	var first map[string]json.RawMessage
	if err := json.Unmarshal(items[0], &first); err != nil {
		return nil, err
	}
	if _, ranked := first["label"]; ranked {
		var pairs []labelScore
		if err := json.Unmarshal(trimmed, &pairs); err != nil {
			return nil, err
		}
		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Score > pairs[j].Score })
		r := Result{Labels: make([]string, len(pairs)), Scores: make([]float64, len(pairs))}
		for i, p := range pairs {
			if p.Label == "" {
				return nil, fmt.Errorf("%w: pair %d has no label", ErrInvalidOutput, i)
			}
			r.Labels[i] = p.Label
			r.Scores[i] = p.Score
		}
		return []Result{r}, nil
	}

	results := make([]Result, len(items))
	for i, item := range items {
		r, err := decodeItem(item)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		results[i] = r
	}
	return results, nil
}

func decodeItem(raw []byte) (Result, error) {
	var item zeroShotItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return Result{}, err
	}
	if len(item.Error) > 0 && string(item.Error) != "null" {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidOutput, truncate(string(item.Error), maxErrorBody))
	}
	if len(item.Labels) == 0 {
		return Result{}, fmt.Errorf("%w: no labels", ErrInvalidOutput)
	}
	return item.Result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package ai

import (
	"context"
	"errors"
	"fmt"

	"webpage-compliance/internal/report"
)

// Candidate labels submitted with every zero-shot request.
const (
	LabelEntailment    = "entailment"
	LabelNeutral       = "neutral"
	LabelContradiction = "contradiction"
)

// CandidateLabels is the fixed label set, in request order.
var CandidateLabels = []string{LabelEntailment, LabelNeutral, LabelContradiction}

// Classifier judges sentences against a policy text.
type Classifier interface {
	Name() string
	// ClassifyBatch returns one verdict per sentence, in input order.
	ClassifyBatch(ctx context.Context, sentences []string, policyText string) ([]report.Verdict, error)
}

// Result is one ranked zero-shot classification. Only the first label is
// used to decide a verdict.
type Result struct {
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
	Sequence string    `json:"sequence"`
}

// TopLabel returns the highest ranked label, or "" when there is none.
func (r Result) TopLabel() string {
	if len(r.Labels) == 0 {
		return ""
	}
	return r.Labels[0]
}

var (
	// ErrDisabled is returned when a backend lacks the credentials it needs.
	ErrDisabled = errors.New("ai classifier disabled")
	// ErrEmptyBatch is returned for a batch without sentences.
	ErrEmptyBatch = errors.New("ai classifier: empty batch")
)

// StatusError reports a non-200 answer from a classifier backend.
type StatusError struct {
	Backend string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s status %d", e.Backend, e.Code)
	}
	return fmt.Sprintf("%s status %d: %s", e.Backend, e.Code, e.Body)
}

// VerdictForLabel maps a classifier label onto a verdict. The match is
// case-sensitive and every unrecognised label is inconclusive.
func VerdictForLabel(label string) report.Verdict {
	switch label {
	case LabelEntailment:
		return report.Compliant
	case LabelContradiction:
		return report.NonCompliant
	default:
		return report.Inconclusive
	}
}

// PremiseHypothesis builds the classifier input pairing a sentence with the
// full policy text.
func PremiseHypothesis(sentence, policyText string) string {
	return fmt.Sprintf("premise: %s, hypothesis: %s", sentence, policyText)
}

func verdictsFor(backend string, results []Result, want int) ([]report.Verdict, error) {
	if len(results) != want {
		return nil, fmt.Errorf("%s returned %d results for %d inputs", backend, len(results), want)
	}
	verdicts := make([]report.Verdict, len(results))
	for i, r := range results {
		verdicts[i] = VerdictForLabel(r.TopLabel())
	}
	return verdicts, nil
}

// Package compliance runs the sentence-level compliance pipeline: split the
// webpage text into sentences, classify them in batches against the policy
// text and aggregate the verdicts into a report.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"webpage-compliance/internal/ai"
	"webpage-compliance/internal/report"
	"webpage-compliance/internal/retry"
	"webpage-compliance/internal/text"
)

// ClassifierError reports a batch whose classification failed after every
// permitted attempt. Its message is the last classifier error unchanged.
type ClassifierError struct {
	Batch int
	Err   error
}

func (e *ClassifierError) Error() string { return e.Err.Error() }

func (e *ClassifierError) Unwrap() error { return e.Err }

// Options tune an Analyzer.
type Options struct {
	BatchSize int
	Retry     retry.Policy
}

// DefaultOptions classifies one sentence per request with the default
// retry policy.
func DefaultOptions() Options {
	return Options{BatchSize: 1, Retry: retry.DefaultPolicy()}
}

// Analyzer turns a webpage text and a policy text into a report.
type Analyzer struct {
	classifier ai.Classifier
	opts       Options
}

// NewAnalyzer validates opts and binds them to classifier.
func NewAnalyzer(classifier ai.Classifier, opts Options) (*Analyzer, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: classifier required", text.ErrContractViolation)
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w (got %d)", text.ErrInvalidChunkSize, opts.BatchSize)
	}
	if opts.Retry.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w (got %d)", retry.ErrInvalidPolicy, opts.Retry.MaxAttempts)
	}
	return &Analyzer{classifier: classifier, opts: opts}, nil
}

// Run classifies every sentence of webpageText against policyText. Batches
// are processed one after another in document order. Any batch that still
// fails after its retries fails the whole run and no report is returned.
func (a *Analyzer) Run(ctx context.Context, webpageText, policyText string) (report.Report, error) {
	sentences := text.SplitSentences(webpageText)
	batches, err := text.Chunk(sentences, a.opts.BatchSize)
	if err != nil {
		return report.Report{}, err
	}

	start := time.Now()
	findings := make([]report.Finding, 0, len(sentences))
	for i, batch := range batches {
		verdicts, err := retry.Do(ctx, a.opts.Retry, "classify batch", func(ctx context.Context) ([]report.Verdict, error) {
			return a.classify(ctx, batch, policyText)
		})
		if err != nil {
			return report.Report{}, a.batchError(ctx, i, err)
		}
		for j, sentence := range batch {
			findings = append(findings, report.Finding{Sentence: sentence, Verdict: verdicts[j]})
		}
		logrus.WithFields(logrus.Fields{
			"batch":      i + 1,
			"batches":    len(batches),
			"sentences":  len(batch),
			"classifier": a.classifier.Name(),
		}).Debug("batch classified")
	}

	result := report.Aggregate(findings)
	logrus.WithFields(logrus.Fields{
		"sentences":     result.Summary.Total,
		"compliant":     result.Summary.Compliant,
		"non_compliant": result.Summary.NonCompliant,
		"inconclusive":  result.Summary.Inconclusive,
		"duration":      time.Since(start).Round(time.Millisecond),
	}).Info("compliance analysis complete")
	return result, nil
}

func (a *Analyzer) classify(ctx context.Context, batch []string, policyText string) ([]report.Verdict, error) {
	verdicts, err := a.classifier.ClassifyBatch(ctx, batch, policyText)
	switch {
	case errors.Is(err, ai.ErrEmptyBatch), errors.Is(err, text.ErrContractViolation):
		return nil, retry.Permanent(err)
	case err != nil:
		return nil, err
	case len(verdicts) != len(batch):
		return nil, fmt.Errorf("%s returned %d verdicts for %d sentences", a.classifier.Name(), len(verdicts), len(batch))
	}
	return verdicts, nil
}

func (a *Analyzer) batchError(ctx context.Context, batch int, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, ai.ErrEmptyBatch), errors.Is(err, text.ErrContractViolation), errors.Is(err, retry.ErrInvalidPolicy):
		return err
	}
	return &ClassifierError{Batch: batch, Err: err}
}

// BatchSize reports how many sentences go into one classifier call.
func (a *Analyzer) BatchSize() int { return a.opts.BatchSize }

// Policy returns the retry policy applied to each batch.
func (a *Analyzer) Policy() retry.Policy { return a.opts.Retry }

// ClassifierName identifies the configured backend.
func (a *Analyzer) ClassifierName() string { return a.classifier.Name() }

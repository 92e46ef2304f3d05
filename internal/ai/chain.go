package ai

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"webpage-compliance/internal/report"
)

type classifierChain struct {
	primary  Classifier
	fallback Classifier
}

// WithFallback returns a classifier that first tries the primary
// implementation and asks the fallback when the primary call fails. When
// both fail the two errors are returned joined.
func WithFallback(primary, fallback Classifier) Classifier {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &classifierChain{primary: primary, fallback: fallback}
}

func (c *classifierChain) Name() string {
	return c.primary.Name() + "|" + c.fallback.Name()
}

func (c *classifierChain) ClassifyBatch(ctx context.Context, sentences []string, policyText string) ([]report.Verdict, error) {
	verdicts, err := c.primary.ClassifyBatch(ctx, sentences, policyText)
	if err == nil {
		return verdicts, nil
	}
	if errors.Is(err, ErrEmptyBatch) || ctx.Err() != nil {
		return nil, err
	}
	logrus.WithError(err).WithFields(logrus.Fields{
		"primary":  c.primary.Name(),
		"fallback": c.fallback.Name(),
	}).Warn("primary classifier failed, using fallback")

	verdicts, fbErr := c.fallback.ClassifyBatch(ctx, sentences, policyText)
	if fbErr != nil {
		return nil, errors.Join(err, fbErr)
	}
	return verdicts, nil
}

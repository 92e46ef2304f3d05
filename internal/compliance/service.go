package compliance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"webpage-compliance/internal/ai"
	"webpage-compliance/internal/config"
	"webpage-compliance/internal/report"
	"webpage-compliance/internal/scraper"
	"webpage-compliance/internal/store"
)

// Settings describes how a Service is wired.
type Settings struct {
	Classifier  string `json:"classifier"`
	BatchSize   int    `json:"batch_size"`
	MaxAttempts int    `json:"max_attempts"`
	PageCache   bool   `json:"page_cache"`
}

// Service fetches both documents and runs the analyzer over them.
type Service struct {
	fetcher   scraper.Fetcher
	analyzer  *Analyzer
	pageCache bool
	closers   []io.Closer
}

// NewService assembles a Service. closers are released by Close in order.
func NewService(fetcher scraper.Fetcher, analyzer *Analyzer, closers ...io.Closer) (*Service, error) {
	if fetcher == nil || analyzer == nil {
		return nil, errors.New("fetcher and analyzer required")
	}
	_, cached := fetcher.(*scraper.CachedFetcher)
	return &Service{fetcher: fetcher, analyzer: analyzer, pageCache: cached, closers: closers}, nil
}

// NewServiceFromConfig builds the classifier, the fetch session and the
// optional page cache described by cfg.
func NewServiceFromConfig(cfg config.Config) (*Service, error) {
	classifier, err := NewClassifier(cfg)
	if err != nil {
		return nil, err
	}
	analyzer, err := NewAnalyzer(classifier, Options{BatchSize: cfg.BatchSize, Retry: cfg.Retry.Policy()})
	if err != nil {
		return nil, err
	}

	httpFetcher := scraper.NewHTTPFetcher(cfg.Fetch)
	closers := []io.Closer{httpFetcher}
	var fetcher scraper.Fetcher = httpFetcher

	if cfg.PageCache.TTL > 0 && strings.TrimSpace(cfg.PageCache.Path) != "" {
		db, err := openPageCache(cfg.PageCache)
		if err != nil {
			_ = httpFetcher.Close()
			return nil, err
		}
		fetcher = scraper.NewCachedFetcher(httpFetcher, db, cfg.PageCache.TTL)
		closers = append(closers, db)
	} else {
		logrus.Info("page snapshot cache disabled")
	}

	logrus.WithFields(logrus.Fields{
		"classifier":   classifier.Name(),
		"batch_size":   cfg.BatchSize,
		"max_attempts": cfg.Retry.MaxAttempts,
	}).Info("compliance service configured")
	return NewService(fetcher, analyzer, closers...)
}

func openPageCache(cfg config.CacheConfig) (*store.Database, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create page cache directory: %w", err)
		}
	}
	db, err := store.Open(cfg.Path, true)
	if err != nil {
		return nil, err
	}
	purged, err := db.PurgeSnapshotsBefore(time.Now().Add(-cfg.TTL))
	if err != nil {
		logrus.WithError(err).Warn("purge stale page snapshots")
	}
	logrus.WithFields(logrus.Fields{
		"path":   cfg.Path,
		"ttl":    cfg.TTL,
		"purged": purged,
	}).Info("page snapshot cache enabled")
	return db, nil
}

// NewClassifier selects the backend named by cfg.Backend.
func NewClassifier(cfg config.Config) (ai.Classifier, error) {
	switch cfg.Backend {
	case config.BackendHuggingFace:
		return ai.NewHuggingFaceClient(cfg.HuggingFace), nil
	case config.BackendOpenAI:
		client, err := ai.NewChatClient(cfg.OpenAI)
		if err != nil {
			return nil, fmt.Errorf("openai classifier: configure OPENAI_API_KEY: %w", err)
		}
		return client, nil
	case config.BackendChain:
		primary := ai.NewHuggingFaceClient(cfg.HuggingFace)
		var fallback ai.Classifier
		client, err := ai.NewChatClient(cfg.OpenAI)
		switch {
		case err == nil:
			fallback = client
		case errors.Is(err, ai.ErrDisabled):
			logrus.Warn("openai fallback disabled - no API key configured")
		default:
			return nil, fmt.Errorf("openai classifier: %w", err)
		}
		return ai.WithFallback(primary, fallback), nil
	}
	return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
}

// CheckCompliance fetches the webpage and then the policy document and
// classifies every webpage sentence against the policy text. Fetch failures
// are returned as they are, without retries.
func (s *Service) CheckCompliance(ctx context.Context, webpageURL, policyURL string) (report.Report, error) {
	webpageText, err := s.fetch(ctx, webpageURL)
	if err != nil {
		return report.Report{}, err
	}
	policyText, err := s.fetch(ctx, policyURL)
	if err != nil {
		return report.Report{}, err
	}
	logrus.WithFields(logrus.Fields{
		"webpage_url":   webpageURL,
		"policy_url":    policyURL,
		"webpage_bytes": len(webpageText),
		"policy_bytes":  len(policyText),
	}).Info("documents fetched")
	return s.analyzer.Run(ctx, webpageText, policyText)
}

func (s *Service) fetch(ctx context.Context, url string) (string, error) {
	content, err := s.fetcher.FetchText(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return content, nil
}

// Settings reports the active wiring.
func (s *Service) Settings() Settings {
	return Settings{
		Classifier:  s.analyzer.ClassifierName(),
		BatchSize:   s.analyzer.BatchSize(),
		MaxAttempts: s.analyzer.Policy().MaxAttempts,
		PageCache:   s.pageCache,
	}
}

// Close releases the fetch session and the page cache.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"webpage-compliance/internal/store"
)

// SnapshotStore is the persistence CachedFetcher needs.
type SnapshotStore interface {
	GetSnapshot(url string) (*store.PageSnapshot, error)
	SaveSnapshot(snap *store.PageSnapshot) error
}

// CachedFetcher serves page text from a snapshot store while it is younger
// than the TTL and refreshes it through the wrapped fetcher otherwise.
// Cache failures are logged and never mask a fetch result.
type CachedFetcher struct {
	next  Fetcher
	store SnapshotStore
	ttl   time.Duration
	now   func() time.Time
}

// NewCachedFetcher wraps next. A non-positive ttl returns next unchanged.
func NewCachedFetcher(next Fetcher, snapshots SnapshotStore, ttl time.Duration) Fetcher {
	if ttl <= 0 || snapshots == nil {
		return next
	}
	return &CachedFetcher{next: next, store: snapshots, ttl: ttl, now: time.Now}
}

// FetchText implements Fetcher.
func (c *CachedFetcher) FetchText(ctx context.Context, url string) (string, error) {
	snap, err := c.store.GetSnapshot(url)
	switch {
	case err == nil && snap.Fresh(c.now(), c.ttl):
		logrus.WithFields(logrus.Fields{
			"url":   url,
			"bytes": snap.Bytes,
			"age":   c.now().Sub(snap.FetchedAt).Round(time.Second),
		}).Debug("page snapshot cache hit")
		return snap.Text, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		logrus.WithError(err).WithField("url", url).Warn("read page snapshot")
	}

	text, err := c.next.FetchText(ctx, url)
	if err != nil {
		return "", err
	}

	fresh := &store.PageSnapshot{URL: url, FetchedAt: c.now().UTC()}
	fresh.SetText(text)
	if err := c.store.SaveSnapshot(fresh); err != nil {
		logrus.WithError(err).WithField("url", url).Warn("save page snapshot")
	}
	return text, nil
}

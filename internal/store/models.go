package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PageSnapshot is the extracted text of a fetched page, kept so repeated
// checks against the same policy or webpage skip the network.
type PageSnapshot struct {
	URL         string `gorm:"primaryKey;size:2048"`
	ContentHash string `gorm:"size:64"`
	Text        string `gorm:"type:text"`
	Bytes       int
	FetchedAt   time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SetText stores text together with its size and digest.
func (p *PageSnapshot) SetText(text string) {
	sum := sha256.Sum256([]byte(text))
	p.Text = text
	p.Bytes = len(text)
	p.ContentHash = hex.EncodeToString(sum[:])
}

// Fresh reports whether the snapshot is younger than ttl at now.
func (p *PageSnapshot) Fresh(now time.Time, ttl time.Duration) bool {
	if p == nil || ttl <= 0 {
		return false
	}
	return now.Sub(p.FetchedAt) < ttl
}

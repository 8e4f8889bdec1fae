package services

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// FindingsCache remembers partial findings by evidence content so that a
// retried run does not pay for the same per-file model call twice.
type FindingsCache struct {
	cache *gocache.Cache
}

// NewFindingsCache creates a cache whose entries expire after ttl.
func NewFindingsCache(ttl time.Duration) *FindingsCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &FindingsCache{cache: gocache.New(ttl, 2*ttl)}
}

func (c *FindingsCache) Get(ev models.NormalizedEvidence) (models.PartialFinding, bool) {
	if c == nil {
		return models.PartialFinding{}, false
	}
	if val, found := c.cache.Get(findingsKey(ev)); found {
		return val.(models.PartialFinding), true
	}
	return models.PartialFinding{}, false
}

func (c *FindingsCache) Set(ev models.NormalizedEvidence, finding models.PartialFinding) {
	if c == nil {
		return
	}
	c.cache.SetDefault(findingsKey(ev), finding)
}

func findingsKey(ev models.NormalizedEvidence) string {
	h := sha256.New()
	h.Write([]byte(ev.Name))
	h.Write([]byte{0})
	h.Write([]byte(ev.Kind))
	h.Write([]byte{0})
	h.Write([]byte(ev.Payload))
	return "findings:v1:" + hex.EncodeToString(h.Sum(nil))
}

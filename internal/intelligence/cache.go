package intelligence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"dualplan/internal/architecture"
	"dualplan/internal/metrics"
)

const keyPrefix = "dualplan:intelligence:"

// Cache is a two-level snapshot cache: an in-process expiring LRU in front
// of an optional shared Redis.
type Cache struct {
	l1     *expirable.LRU[string, architecture.IntelligenceContext]
	l2     RedisClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache builds a cache holding up to size snapshots for ttl. redis may be nil.
func NewCache(size int, ttl time.Duration, redis RedisClient, logger *zap.Logger) *Cache {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		l1:     expirable.NewLRU[string, architecture.IntelligenceContext](size, nil, ttl),
		l2:     redis,
		ttl:    ttl,
		logger: logger,
	}
}

// Get looks the key up in L1, then L2. L2 hits are promoted into L1.
func (c *Cache) Get(ctx context.Context, key string) (architecture.IntelligenceContext, bool) {
	if v, ok := c.l1.Get(key); ok {
		metrics.RecordCacheLookup("l1", true)
		return v, true
	}
	metrics.RecordCacheLookup("l1", false)

	if c.l2 == nil {
		return architecture.IntelligenceContext{}, false
	}
	raw, err := c.l2.Get(ctx, keyPrefix+key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("intelligence cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.RecordCacheLookup("l2", false)
		return architecture.IntelligenceContext{}, false
	}

	var snap architecture.IntelligenceContext
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		c.logger.Warn("discarding corrupt intelligence snapshot", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheLookup("l2", false)
		return architecture.IntelligenceContext{}, false
	}
	metrics.RecordCacheLookup("l2", true)
	c.l1.Add(key, snap)
	return snap, true
}

// Put writes a snapshot through both levels. Fallback snapshots are ignored
// so an outage is not remembered as a real answer.
func (c *Cache) Put(ctx context.Context, key string, snap architecture.IntelligenceContext) {
	if snap.Source == architecture.SourceFallback {
		return
	}
	c.l1.Add(key, snap)
	if c.l2 == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.l2.Set(ctx, keyPrefix+key, data, c.ttl); err != nil {
		c.logger.Warn("intelligence cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Len reports the number of L1 entries
func (c *Cache) Len() int {
	return c.l1.Len()
}

// Key derives the cache key for a specification. Only the fields that shape
// recommendations participate, so cosmetic edits still hit.
func Key(spec *architecture.Specification) string {
	h := sha256.New()
	if spec != nil {
		write := func(s string) {
			h.Write([]byte(strings.ToLower(strings.TrimSpace(s))))
			h.Write([]byte{0})
		}
		write(spec.Name)
		write(spec.Purpose)
		for _, name := range spec.FeatureNames() {
			write(name)
		}
		tr := spec.TechnicalRequirements
		for _, flag := range []bool{tr.NeedsAuth, tr.NeedsDatabase, tr.NeedsRealtime, tr.NeedsFileUpload} {
			write(strconv.FormatBool(flag))
		}
		write(tr.Scale)
	}
	return hex.EncodeToString(h.Sum(nil))
}

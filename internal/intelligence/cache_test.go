package intelligence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualplan/internal/architecture"
)

func TestCache_PromotesRedisHits(t *testing.T) {
	redis := newMemRedis()
	snap := architecture.DefaultIntelligence(fixedNow)
	snap.Source = architecture.SourceLive

	NewCache(4, time.Hour, redis, nil).Put(context.Background(), "k", snap)

	// a second process shares Redis but not L1
	other := NewCache(4, time.Hour, redis, nil)
	require.Zero(t, other.Len())

	got, ok := other.Get(context.Background(), "k")

	require.True(t, ok)
	assert.Equal(t, snap.ModelRecommendations, got.ModelRecommendations)
	assert.Equal(t, 1, other.Len())
}

func TestCache_RedisErrorsAreMisses(t *testing.T) {
	redis := newMemRedis()
	redis.err = errors.New("connection refused")
	c := NewCache(4, time.Hour, redis, nil)

	snap := architecture.DefaultIntelligence(fixedNow)
	snap.Source = architecture.SourceLive
	c.Put(context.Background(), "k", snap)

	_, ok := c.Get(context.Background(), "other")
	assert.False(t, ok)

	_, ok = c.Get(context.Background(), "k")
	assert.True(t, ok, "L1 still serves after a failed write-through")
}

func TestCache_CorruptRedisValueIsMiss(t *testing.T) {
	redis := newMemRedis()
	redis.data[keyPrefix+"k"] = "{not json"

	_, ok := NewCache(4, time.Hour, redis, nil).Get(context.Background(), "k")

	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	base := taskSpec()

	cosmetic := taskSpec()
	cosmetic.Name = "  taskboard "
	cosmetic.TargetUsers = "someone else"

	changed := taskSpec()
	changed.TechnicalRequirements.NeedsFileUpload = true

	assert.Len(t, Key(base), 64)
	assert.Equal(t, Key(base), Key(cosmetic))
	assert.NotEqual(t, Key(base), Key(changed))
	assert.NotEmpty(t, Key(nil))
}

package ai

import (
	"sync"
	"time"
)

// usageTracker is embedded by provider clients to keep thread-safe usage stats
type usageTracker struct {
	mu    sync.RWMutex
	usage ProviderUsage
}

func newUsageTracker(p AIProvider) *usageTracker {
	return &usageTracker{usage: ProviderUsage{Provider: p, LastUsed: time.Now()}}
}

func (u *usageTracker) record(totalTokens int, cost float64, duration time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.usage.RequestCount++
	u.usage.TotalTokens += int64(totalTokens)
	u.usage.TotalCost += cost
	u.usage.AvgLatency = (u.usage.AvgLatency*float64(u.usage.RequestCount-1) + duration.Seconds()) / float64(u.usage.RequestCount)
	u.usage.LastUsed = time.Now()
}

func (u *usageTracker) recordError() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.usage.ErrorCount++
}

// GetUsage returns a copy of the current usage statistics
func (u *usageTracker) GetUsage() *ProviderUsage {
	u.mu.RLock()
	defer u.mu.RUnlock()
	snapshot := u.usage
	return &snapshot
}

func failedResponse(req *AIRequest, p AIProvider, err error, start time.Time) *AIResponse {
	return &AIResponse{
		ID:        req.ID,
		Provider:  p,
		Error:     err.Error(),
		Duration:  time.Since(start),
		CreatedAt: time.Now(),
	}
}

package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// GetSystemInfo returns runtime and AI provider statistics
func (h *Handler) GetSystemInfo(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data: map[string]interface{}{
			"service": map[string]interface{}{
				"name":        "dualplan",
				"uptime":      time.Since(h.started).String(),
				"active_runs": h.active.Load(),
			},
			"runtime": map[string]interface{}{
				"go_version":   runtime.Version(),
				"goroutines":   runtime.NumGoroutine(),
				"memory_alloc": memStats.Alloc,
				"gc_runs":      memStats.NumGC,
			},
			"ai": map[string]interface{}{
				"provider_usage": h.providers.GetProviderUsage(),
				"health_status":  h.providers.GetHealthStatus(),
			},
			"timestamp": time.Now().UTC(),
		},
	})
}

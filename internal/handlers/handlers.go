// Package handlers exposes the planning pipeline over HTTP.
package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dualplan/internal/ai"
	"dualplan/internal/dualplan"
	"dualplan/internal/logging"
	"dualplan/internal/store"
)

// Planner runs executions
type Planner interface {
	ExecuteWithID(ctx context.Context, id string, req dualplan.Request, onProgress dualplan.ProgressFunc) dualplan.Result
}

// RunStore persists execution outcomes
type RunStore interface {
	Create(ctx context.Context, id, specName string) (*store.PlanRun, error)
	Finish(ctx context.Context, id string, res dualplan.Result) error
	Get(ctx context.Context, id string) (*store.PlanRun, error)
}

// ProgressHub fans progress out to stream subscribers
type ProgressHub interface {
	Publish(executionID, msgType string, data interface{})
	Finish(executionID string, result interface{})
	HandleWebSocket(c *gin.Context)
}

// ProviderStatus reports AI provider health and usage
type ProviderStatus interface {
	GetHealthStatus() map[ai.AIProvider]bool
	GetProviderUsage() map[ai.AIProvider]*ai.ProviderUsage
}

// StandardResponse represents a standard API response
type StandardResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Handler contains the dependencies of the API handlers
type Handler struct {
	planner   Planner
	runs      RunStore
	hub       ProgressHub
	providers ProviderStatus
	logger    *zap.Logger

	// background executions outlive their request but not the server
	baseCtx context.Context
	wg      sync.WaitGroup
	active  atomic.Int64
	started time.Time
}

// Option customizes a Handler
type Option func(*Handler)

// WithProviderStatus enables GET /api/v1/system
func WithProviderStatus(p ProviderStatus) Option {
	return func(h *Handler) { h.providers = p }
}

// NewHandler creates a handler. Background executions are cancelled when
// baseCtx ends.
func NewHandler(baseCtx context.Context, planner Planner, runs RunStore, hub ProgressHub, logger *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		planner: planner,
		runs:    runs,
		hub:     hub,
		logger:  logging.OrDefault(logger),
		baseCtx: baseCtx,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the API on r
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	v1.POST("/plans", h.StartPlan)
	v1.POST("/plans/sync", h.RunPlan)
	v1.GET("/plans/:id", h.GetPlan)
	v1.POST("/backend-needs", h.ExtractNeeds)
	if h.providers != nil {
		v1.GET("/system", h.GetSystemInfo)
	}

	r.GET("/ws/plans/:id", h.hub.HandleWebSocket)
}

// Wait blocks until every background execution has finished
func (h *Handler) Wait() {
	h.wg.Wait()
}

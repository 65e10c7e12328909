package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dualplan/internal/dualplan"
	"dualplan/internal/layout"
	"dualplan/internal/store"
	"dualplan/internal/websocket"
)

const finishTimeout = 5 * time.Second

func (h *Handler) bindRequest(c *gin.Context) (dualplan.Request, bool) {
	var req dualplan.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "Invalid request format",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return req, false
	}
	if err := req.Specification.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   err.Error(),
			Code:    "INVALID_SPECIFICATION",
		})
		return req, false
	}
	return req, true
}

// StartPlan handles POST /api/v1/plans. The execution runs in the
// background; progress streams on /ws/plans/:id.
func (h *Handler) StartPlan(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	id := uuid.NewString()
	if _, err := h.runs.Create(c.Request.Context(), id, req.Specification.Name); err != nil {
		h.logger.Error("failed to record plan run", zap.String("execution_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to start plan",
			Code:    "STORE_ERROR",
		})
		return
	}

	h.wg.Add(1)
	h.active.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.active.Add(-1)
		h.execute(h.baseCtx, id, req)
	}()

	c.JSON(http.StatusAccepted, StandardResponse{
		Success: true,
		Data: gin.H{
			"id":     id,
			"stream": "/ws/plans/" + id,
		},
		Message: "Plan started",
	})
}

// RunPlan handles POST /api/v1/plans/sync and answers with the terminal result
func (h *Handler) RunPlan(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	id := uuid.NewString()
	if _, err := h.runs.Create(c.Request.Context(), id, req.Specification.Name); err != nil {
		h.logger.Warn("failed to record plan run", zap.String("execution_id", id), zap.Error(err))
	}

	h.active.Add(1)
	res := h.execute(c.Request.Context(), id, req)
	h.active.Add(-1)

	status := http.StatusOK
	if res.Type == dualplan.ResultError {
		status = http.StatusInternalServerError
	}
	c.JSON(status, StandardResponse{
		Success: res.Type != dualplan.ResultError,
		Data:    res,
		Error:   res.Error,
	})
}

func (h *Handler) execute(ctx context.Context, id string, req dualplan.Request) dualplan.Result {
	res := h.planner.ExecuteWithID(ctx, id, req, func(p dualplan.Progress) {
		h.hub.Publish(id, websocket.MessageTypeProgress, p)
	})

	finishCtx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()
	if err := h.runs.Finish(finishCtx, id, res); err != nil {
		h.logger.Warn("failed to store plan result", zap.String("execution_id", id), zap.Error(err))
	}
	h.hub.Finish(id, res)
	return res
}

// GetPlan handles GET /api/v1/plans/:id
func (h *Handler) GetPlan(c *gin.Context) {
	id := c.Param("id")
	run, err := h.runs.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, StandardResponse{
			Success: false,
			Error:   "Plan not found",
			Code:    "PLAN_NOT_FOUND",
		})
		return
	}
	if err != nil {
		h.logger.Error("failed to load plan run", zap.String("execution_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to load plan",
			Code:    "STORE_ERROR",
		})
		return
	}

	data := gin.H{"run": run}
	res, done, err := run.Result()
	if err != nil {
		h.logger.Warn("stored result unreadable", zap.String("execution_id", id), zap.Error(err))
	} else if done {
		data["result"] = res
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: data})
}

// ExtractNeeds handles POST /api/v1/backend-needs. The body is a layout
// description; malformed layouts yield empty needs, never an error.
func (h *Handler) ExtractNeeds(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 4<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "Failed to read request body",
			Code:    "INVALID_REQUEST",
		})
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: layout.ExtractJSON(body)})
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"service":     "dualplan",
		"uptime":      time.Since(h.started).Round(time.Second).String(),
		"active_runs": h.active.Load(),
		"timestamp":   time.Now().UTC(),
	})
}

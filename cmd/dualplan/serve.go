package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dualplan/internal/dualplan"
	"dualplan/internal/handlers"
	"dualplan/internal/logging"
	"dualplan/internal/metrics"
	"dualplan/internal/middleware"
	"dualplan/internal/store"
	"dualplan/internal/websocket"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	Long: `Serve the planning API:

  POST /api/v1/plans           start a plan in the background
  POST /api/v1/plans/sync      plan and wait for the result
  GET  /api/v1/plans/:id       fetch a plan's status and result
  POST /api/v1/backend-needs   derive backend needs from a layout
  GET  /ws/plans/:id           stream a plan's progress
  GET  /health, /metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.L()

	ctx := cmd.Context()

	router, err := buildRouter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	router.StartHealthMonitor(ctx, 5*time.Minute)

	cache, closeCache := buildCache(ctx, cfg, logger)
	defer closeCache()

	runs, err := store.Open(cfg.Store.Driver, cfg.Store.DSN, logger)
	if err != nil {
		return err
	}
	defer runs.Close()

	hub := websocket.NewHub(websocket.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowEmptyOrigin: !cfg.IsProduction(),
	}, logger)
	go hub.Run(ctx)

	orchestrator := dualplan.New(buildGenerator(router, cfg, logger), cfg, cache, logger)
	h := handlers.NewHandler(ctx, orchestrator, runs, hub, logger, handlers.WithProviderStatus(router))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.SecurityHeaders(),
		metrics.PrometheusMiddleware(),
	)
	if rpm := cfg.Server.RequestsPerMinute; rpm > 0 {
		limiter := middleware.NewIPRateLimiter(rpm, max(1, rpm/6))
		go limiter.Cleanup(ctx, 10*time.Minute)
		engine.Use(limiter.RateLimit())
	}
	engine.GET("/metrics", metrics.PrometheusHandler())
	h.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// ctx is done, so background executions are already cancelling
	h.Wait()
	return nil
}

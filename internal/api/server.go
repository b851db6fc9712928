// Package api serves the REST and WebSocket interface of the sentinel.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"market-sentinel/internal/alarm"
	"market-sentinel/internal/backtest"
	"market-sentinel/internal/metrics"
	"market-sentinel/internal/model"
	"market-sentinel/internal/notification"
	"market-sentinel/internal/portfolio"
)

// Monitor is the view of the refresh pipeline the API needs.
type Monitor interface {
	Latest() *model.Cycle
	Universe() []model.Asset
	Timeframes() []model.Timeframe
	Prices() map[string]float64
	Trigger() bool
}

// Deps are the services behind the routes. Book, Monitor and Backtests are
// required; the rest are optional.
type Deps struct {
	Monitor   Monitor
	Book      *alarm.Book
	Backtests *backtest.Runner
	Portfolio *portfolio.Tracker
	Gate      *notification.Gate
	Stream    http.Handler // WebSocket endpoint
	Health    *metrics.HealthStatus
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer

	TOTPSecret string
	StaleAfter time.Duration
}

// Handler implements every route.
type Handler struct {
	deps Deps
	now  func() time.Time
}

// NewEcho builds the router with middleware and all routes registered.
func NewEcho(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(Recover())
	e.Use(RequestLogging())

	h := &Handler{deps: deps, now: time.Now}
	h.RegisterRoutes(e)
	return e
}

// RegisterRoutes mounts the API on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	admin := RequireTOTP(h.deps.TOTPSecret)

	g := e.Group("/api/v1")
	g.GET("/health", h.Health)
	g.GET("/assets", h.Assets)
	g.GET("/heatmap", h.Heatmap)

	g.GET("/rules", h.ListRules)
	g.POST("/rules", h.CreateRule, admin)
	g.PUT("/rules/:id", h.UpdateRule, admin)
	g.DELETE("/rules/:id", h.DeleteRule, admin)
	g.POST("/rules/:id/toggle", h.ToggleRule, admin)
	g.POST("/rules/:id/reset", h.ResetRule, admin)

	g.GET("/signals", h.ListSignals)
	g.DELETE("/signals", h.ClearSignals, admin)
	g.DELETE("/signals/:id", h.DeleteSignal, admin)

	g.POST("/backtest", h.RunBacktest)
	g.POST("/refresh", h.Refresh, admin)
	g.PUT("/notifications/permission", h.SetNotificationPermission, admin)

	if h.deps.Portfolio != nil {
		g.GET("/portfolio", h.ListPortfolio)
		g.GET("/portfolio/summary", h.PortfolioSummary)
		g.POST("/portfolio", h.AddPortfolioItem, admin)
		g.PUT("/portfolio/:id", h.UpdatePortfolioItem, admin)
		g.DELETE("/portfolio/:id", h.DeletePortfolioItem, admin)
		g.POST("/portfolio/:id/sell", h.SellPortfolioItem, admin)
	}

	if h.deps.Stream != nil {
		e.GET("/ws", echo.WrapHandler(h.deps.Stream))
	}
	if h.deps.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.deps.Gatherer, promhttp.HandlerOpts{})))
	}
}

// Server wraps the echo instance with start/stop.
type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer creates a server listening on addr.
func NewServer(addr string, deps Deps) *Server {
	return &Server{echo: NewEcho(deps), addr: addr}
}

// Start listens in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("http server listening", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slog.Info("http server stopped")
	return nil
}

// Echo returns the underlying router.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Package server exposes the question answering service over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kbqa/internal/domain"
	"kbqa/internal/service"
)

// QA is the subset of the service the HTTP layer needs.
type QA interface {
	Ready() bool
	Stats() (service.Stats, bool)
	Reindex(ctx context.Context) (service.Stats, error)
	AnswerQuery(ctx context.Context, question string) service.Answer
}

// DefaultReindexTimeout bounds a reindex started over HTTP when
// Config.ReindexTimeout is zero.
const DefaultReindexTimeout = 5 * time.Minute

// Config configures the HTTP server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ReindexTimeout caps POST /reindex. The build is detached from the
	// request, so a client hanging up does not abort it.
	ReindexTimeout time.Duration
}

// Server wraps an echo instance with the API routes.
type Server struct {
	echo   *echo.Echo
	qa     QA
	cfg    Config
	logger *slog.Logger
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Intent  *string  `json:"intent"`
	Error   string   `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string         `json:"status"`
	Index  *service.Stats `json:"index,omitempty"`
}

// New builds the server. gatherer may be nil to skip /metrics.
func New(qa QA, cfg Config, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger(logger))

	s := &Server{echo: e, qa: qa, cfg: cfg, logger: logger}
	e.POST("/ask", s.ask)
	e.GET("/healthz", s.health)
	e.POST("/reindex", s.reindex)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.echo.Server.ReadTimeout = s.cfg.ReadTimeout
	s.echo.Server.WriteTimeout = s.cfg.WriteTimeout
	s.logger.Info("server: listening", "addr", s.cfg.Addr)
	if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Question) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: domain.ErrEmptyQuery.Error()})
	}
	if !s.qa.Ready() {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: domain.ErrNotReady.Error()})
	}

	ans := s.qa.AnswerQuery(c.Request().Context(), req.Question)
	resp := askResponse{Answer: ans.Answer, Sources: ans.Sources, Error: ans.Error}
	if ans.Intent != "" {
		resp.Intent = &ans.Intent
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) health(c echo.Context) error {
	stats, ok := s.qa.Stats()
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Index: &stats})
}

func (s *Server) reindex(c echo.Context) error {
	timeout := s.cfg.ReindexTimeout
	if timeout <= 0 {
		timeout = DefaultReindexTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), timeout)
	defer cancel()

	stats, err := s.qa.Reindex(ctx)
	if err != nil {
		s.logger.Error("server: reindex failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Warn("server: request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Debug("server: request", attrs...)
			return nil
		},
	})
}

// Package server exposes the typing engine and leaderboard over HTTP and
// WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/verte-zerg/speedtype/internal/leaderboard"
	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/passage"
	"github.com/verte-zerg/speedtype/internal/session"
)

const (
	defaultRateRPS     = 2
	defaultRateBurst   = 5
	defaultMaxSessions = 100
	shutdownTimeout    = 10 * time.Second
)

// History lists and counts stored results.
type History interface {
	ListResults(ctx context.Context, filter model.ResultFilter) ([]model.Result, error)
	CountResults(ctx context.Context) (int, error)
}

// Config wires the server dependencies.
type Config struct {
	Board       *leaderboard.Board
	History     History
	Library     *passage.Library
	Logger      *slog.Logger
	Clock       session.Clock
	RateRPS     float64
	RateBurst   int
	MaxSessions int
}

// Server holds the HTTP router and per-client state.
type Server struct {
	board   *leaderboard.Board
	history History
	library *passage.Library
	logger  *slog.Logger
	clock   session.Clock

	rateRPS   float64
	rateBurst int
	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	sessionSem chan struct{}
	router     *gin.Engine
}

// New builds a server and its routes.
func New(cfg Config) *Server {
	s := &Server{
		board:     cfg.Board,
		history:   cfg.History,
		library:   cfg.Library,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		rateRPS:   cfg.RateRPS,
		rateBurst: cfg.RateBurst,
		limiters:  map[string]*rate.Limiter{},
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = session.SystemClock{}
	}
	if s.rateRPS <= 0 {
		s.rateRPS = defaultRateRPS
	}
	if s.rateBurst <= 0 {
		s.rateBurst = defaultRateBurst
	}
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	s.sessionSem = make(chan struct{}, maxSessions)
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestIDMiddleware(), s.logMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression, ginGzip.WithExcludedPaths([]string{"/ws", "/metrics"})))
	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		s.logger.Warn("failed to set trusted proxies", "error", err)
	}

	router.GET("/healthz", s.healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", noStore())
	api.GET("/passage", s.passageHandler)
	api.GET("/leaderboard", s.leaderboardHandler)
	api.GET("/results", s.resultsHandler)
	api.POST("/results", s.rateLimitMiddleware(), s.submitResultHandler)

	router.GET("/ws/leaderboard", s.leaderboardStreamHandler)
	router.GET("/ws/session", s.sessionHandler)
	return router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/logger"
	"github.com/mvessey/crowd-trader/internal/storage"
)

// Server is the monitoring dashboard. It reads everything from the
// repository, so it works identically for paper and live mode.
type Server struct {
	httpServer *http.Server
	repo       *storage.Repository
	config     *config.Config
	logger     *logger.Logger
}

func NewServer(repo *storage.Repository, cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		repo:   repo,
		config: cfg,
		logger: log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	mux.HandleFunc("GET /api/signals", s.handleSignals)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/candles/{product}", s.handleCandles)
	mux.HandleFunc("GET /api/daily-pnl", s.handleDailyPnL)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.config.Web.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

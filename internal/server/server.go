// internal/server/server.go
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lead-radar/internal/common/config"
	"lead-radar/internal/common/logger"
	"lead-radar/internal/models"
	"lead-radar/internal/pipeline"
	"lead-radar/internal/pipeline/review"
)

// ReviewQueue is the slice of the review lifecycle the API exposes.
type ReviewQueue interface {
	Pending(ctx context.Context) []*models.Lead
	Get(ctx context.Context, id string) (*models.Lead, error)
	Decide(ctx context.Context, id string, decision review.Decision) (*review.Outcome, error)
	ResendNotification(ctx context.Context, id string) (*review.Outcome, error)
	LimitedMode() bool
}

// Scraper triggers pipeline cycles on demand.
type Scraper interface {
	Run(ctx context.Context, portfolio string, companies []string, timeRange string) (*pipeline.Summary, error)
	RunAll(ctx context.Context, timeRange string) ([]*pipeline.Summary, error)
}

// RecentLister reads decided leads back out of storage. Nil in limited mode.
type RecentLister interface {
	Recent(ctx context.Context, company string, limit int) ([]*models.Lead, error)
}

// Server is the dashboard HTTP API.
type Server struct {
	config  *config.Config
	queue   ReviewQueue
	scraper Scraper
	recent  RecentLister
	logger  logger.Logger

	httpServer *http.Server
}

func New(cfg *config.Config, queue ReviewQueue, scraper Scraper, recent RecentLister, log logger.Logger) *Server {
	s := &Server{
		config:  cfg,
		queue:   queue,
		scraper: scraper,
		recent:  recent,
		logger:  log.WithFields(map[string]interface{}{"component": "server"}),
	}
	readTimeout := 15 * time.Second
	if cfg.Server.ReadTimeout > 0 {
		readTimeout = config.GetDuration(cfg.Server.ReadTimeout)
	}
	writeTimeout := 30 * time.Second
	if cfg.Server.WriteTimeout > 0 {
		writeTimeout = config.GetDuration(cfg.Server.WriteTimeout)
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      s.Routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	return s
}

// Routes builds the API mux. Exposed so tests can drive handlers without
// binding a port.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/scrape", s.handleScrape)
	mux.HandleFunc("GET /api/leads/pending", s.handlePending)
	mux.HandleFunc("GET /api/leads/recent", s.handleRecent)
	mux.HandleFunc("GET /api/leads/{id}", s.handleGetLead)
	mux.HandleFunc("POST /api/leads/{id}/decision", s.handleDecision)
	mux.HandleFunc("POST /api/leads/{id}/resend", s.handleResend)
	mux.HandleFunc("GET /api/companies", s.handleCompanies)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{
		"address":     s.httpServer.Addr,
		"limitedMode": s.queue.LimitedMode(),
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

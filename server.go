package assettracking

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/theoremus-urban-solutions/asset-tracking/tracker"
	"github.com/theoremus-urban-solutions/asset-tracking/transport"
)

// Server is the API surface over the tracking core.
type Server struct {
	svc       *tracker.Service
	stats     *tracker.Aggregator
	hub       *transport.Hub
	busDriver string
	logger    *slog.Logger
	http      *http.Server
}

// NewServer builds the HTTP server on the given port.
func NewServer(port int, svc *tracker.Service, stats *tracker.Aggregator, hub *transport.Hub, busDriver string, logger *slog.Logger) *Server {
	s := &Server{
		svc:       svc,
		stats:     stats,
		hub:       hub,
		busDriver: busDriver,
		logger:    logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/locations/{assetType}/{assetId}", s.handleSubmitLocation)
	mux.HandleFunc("GET /api/assets", s.handleListAssets)
	mux.HandleFunc("GET /api/assets/{assetType}/{assetId}", s.handleGetAsset)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.Handle("GET /ws", hub)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start runs the server until Shutdown. It blocks.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

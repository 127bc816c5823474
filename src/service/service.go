// Package service exposes a node's stats and metrics over HTTP.
package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Stats is what the /stats endpoint reports. *node.Node is a Stats.
type Stats interface {
	GetStats() map[string]string
}

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	stats       Stats
	server      *http.Server
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, stats Stats, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		stats:       stats,
		logger:      logger,
	}

	service.server = &http.Server{
		Addr:    bindAddress,
		Handler: service.handler(),
	}

	return &service
}

// handler registers the API handlers on a mux of their own, so that several
// nodes can share a process in tests.
func (s *Service) handler() http.Handler {
	s.logger.Debug("Registering Murmur API handlers")
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	mux.Handle("/metrics", telemetry.MetricsHandler())
	return mux
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call which returns nil once
// Close has been called.
func (s *Service) Serve() error {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving Murmur API")

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	if err != nil {
		s.logger.Error(err)
	}
	return err
}

// Close stops the server.
func (s *Service) Close(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.stats.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// Package signal contains the websocket server and the wiring of every
// component behind it.
package signal

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"parley/broker"
	"parley/database/memory"
	"parley/metric"
	"parley/recorder"
	"parley/room"
	"parley/sfu"
	"parley/signal/controller"
	"parley/signal/handler"
	"parley/signal/middleware"
)

// Signal contains the server and configuration.
type Signal struct {
	server  *http.Server
	metrics *metric.Metrics
	conf    Config
}

// New creates a new instance of Signal.
func New(config Config) (*Signal, error) {
	if config.Metric.Port == 0 {
		config.Metric.Port = metric.DefaultMetricsPort
	}
	if config.Metric.Path == "" {
		config.Metric.Path = metric.DefaultMetricsPath
	}
	if config.RecordingsDir == "" {
		config.RecordingsDir = DefaultRecordingsDir
	}

	worker, err := sfu.NewWorker(config.SFU)
	if err != nil {
		return nil, fmt.Errorf("failed to create media worker: %w", err)
	}

	brk := broker.New()
	db := memory.New()
	reg := room.NewRegistry(worker)
	rec := recorder.New(recorder.Config{Directory: config.RecordingsDir})
	met := metric.New(config.Metric)
	con := controller.New(controller.Config{
		Secret:      config.Secret,
		PeerTimeout: config.PeerTimeout,
	}, brk, reg, db, rec, met)

	mds := []middleware.Interceptor{
		middleware.NewCORS(),
		middleware.NewLogger(),
	}
	mux := middleware.Set(handler.New(con), mds...)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		ReadHeaderTimeout: 2 * time.Second,
		Handler:           mux,
	}
	return &Signal{
		server:  srv,
		metrics: met,
		conf:    config,
	}, nil
}

// Start runs the metrics server and the signal server.
func (s *Signal) Start() error {
	s.metrics.RegisterMetrics()
	s.metrics.Start()
	s.metrics.UpdateSystemMetrics()

	if s.conf.CertFile == "" || s.conf.KeyFile == "" {
		log.Info().Int("port", s.conf.Port).Msg("starting signal server without TLS")
		if err := s.server.ListenAndServe(); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	}

	log.Info().Int("port", s.conf.Port).Msg("starting signal server with TLS")
	if err := s.server.ListenAndServeTLS(s.conf.CertFile, s.conf.KeyFile); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop shuts the servers down.
func (s *Signal) Stop() error {
	if err := s.metrics.Stop(); err != nil {
		log.Warn().Err(err).Msg("failed to stop metrics server")
	}
	if err := s.server.Close(); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}

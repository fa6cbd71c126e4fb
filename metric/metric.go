// Package metric provides Prometheus metrics collection and monitoring.
package metric

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/cpu"
)

const systemSampleInterval = 5 * time.Second

// Metrics contains the Prometheus metrics server and registered custom metrics.
type Metrics struct {
	httpServer *http.Server
	config     Config
	done       chan struct{}

	webSocketConnections prometheus.Gauge
	rooms                prometheus.Gauge
	peers                prometheus.Gauge
	screenShares         prometheus.Gauge
	recordings           prometheus.Gauge
	cpuUsage             prometheus.Gauge
	memoryUsage          prometheus.Gauge
	broadcasts           prometheus.Counter
	protocolErrors       prometheus.Counter
}

// New creates a new Metrics instance with the specified configuration.
func New(config Config) *Metrics {
	return &Metrics{
		config: config,
		done:   make(chan struct{}),
		webSocketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of WebSocket connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rooms_total",
			Help: "Current number of live rooms.",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peers_total",
			Help: "Current number of joined peers.",
		}),
		screenShares: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screen_shares_total",
			Help: "Current number of active screen shares.",
		}),
		recordings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recordings_total",
			Help: "Current number of live recording sessions.",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percentage",
			Help: "CPU usage percentage.",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Current memory usage in bytes.",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "broadcasts_sent_total",
			Help: "Total number of room broadcasts sent.",
		}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "protocol_errors_total",
			Help: "Total number of error responses sent to clients.",
		}),
	}
}

// RegisterMetrics registers custom metrics with Prometheus.
func (m *Metrics) RegisterMetrics() {
	prometheus.MustRegister(m.webSocketConnections)
	prometheus.MustRegister(m.rooms)
	prometheus.MustRegister(m.peers)
	prometheus.MustRegister(m.screenShares)
	prometheus.MustRegister(m.recordings)
	prometheus.MustRegister(m.cpuUsage)
	prometheus.MustRegister(m.memoryUsage)
	prometheus.MustRegister(m.broadcasts)
	prometheus.MustRegister(m.protocolErrors)
}

// Start initializes and starts the metrics HTTP server.
func (m *Metrics) Start() {
	mux := http.NewServeMux()
	mux.Handle(m.config.Path, promhttp.Handler())
	m.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", m.config.Port),
		Handler: mux,
	}

	go func() {
		log.Info().Int("port", m.config.Port).Str("path", m.config.Path).Msg("starting metrics server")
		if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// Stop gracefully shuts down the metrics server and the sampling loop.
func (m *Metrics) Stop() error {
	close(m.done)
	if m.httpServer != nil {
		log.Info().Int("port", m.config.Port).Msg("stopping metrics server")
		return m.httpServer.Close()
	}
	return nil
}

// UpdateSystemMetrics samples process memory and system CPU in the background.
func (m *Metrics) UpdateSystemMetrics() {
	go func() {
		ticker := time.NewTicker(systemSampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
			}

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			m.memoryUsage.Set(float64(memStats.Alloc))

			percents, err := cpu.Percent(0, false)
			if err != nil || len(percents) == 0 {
				continue
			}
			m.cpuUsage.Set(percents[0])
		}
	}()
}

// IncrementWebSocketConnections increments the WebSocket connection count.
func (m *Metrics) IncrementWebSocketConnections() {
	m.webSocketConnections.Inc()
}

// DecrementWebSocketConnections decrements the WebSocket connection count.
func (m *Metrics) DecrementWebSocketConnections() {
	m.webSocketConnections.Dec()
}

// IncrementRooms increments the live room count.
func (m *Metrics) IncrementRooms() {
	m.rooms.Inc()
}

// DecrementRooms decrements the live room count.
func (m *Metrics) DecrementRooms() {
	m.rooms.Dec()
}

// IncrementPeers increments the joined peer count.
func (m *Metrics) IncrementPeers() {
	m.peers.Inc()
}

// DecrementPeers decrements the joined peer count.
func (m *Metrics) DecrementPeers() {
	m.peers.Dec()
}

// IncrementScreenShares increments the active screen share count.
func (m *Metrics) IncrementScreenShares() {
	m.screenShares.Inc()
}

// DecrementScreenShares decrements the active screen share count.
func (m *Metrics) DecrementScreenShares() {
	m.screenShares.Dec()
}

// IncrementRecordings increments the live recording count.
func (m *Metrics) IncrementRecordings() {
	m.recordings.Inc()
}

// DecrementRecordings decrements the live recording count.
func (m *Metrics) DecrementRecordings() {
	m.recordings.Dec()
}

// IncrementBroadcasts counts one room broadcast.
func (m *Metrics) IncrementBroadcasts() {
	m.broadcasts.Inc()
}

// IncrementProtocolErrors counts one error response.
func (m *Metrics) IncrementProtocolErrors() {
	m.protocolErrors.Inc()
}

// Package metrics exposes Prometheus metrics for the presence daemon.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

const namespace = "figpresence"

// Metrics holds the daemon's collectors.
type Metrics struct {
	publishTotal     *prometheus.CounterVec
	fileChangesTotal prometheus.Counter
	fileActive       prometheus.Gauge
	connectionState  prometheus.Gauge
	connectsTotal    prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		publishTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_total",
				Help:      "Publish attempts by outcome",
			},
			[]string{"result"},
		),
		fileChangesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "file_changes_total",
				Help:      "Active file transitions observed",
			},
		),
		fileActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "file_active",
				Help:      "1 while a file is open in the watched app",
			},
		),
		connectionState: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connection_state",
				Help:      "Presence channel state (0 disconnected, 1 connecting, 2 connected)",
			},
		),
		connectsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connects_total",
				Help:      "Successful presence channel handshakes",
			},
		),
	}
}

// RecordPublish counts a publish outcome.
func (m *Metrics) RecordPublish(outcome domain.PublishOutcome) {
	m.publishTotal.WithLabelValues(outcome.Result.String()).Inc()
}

// RecordFileChange counts a file transition and tracks whether a file is open.
func (m *Metrics) RecordFileChange(fs *domain.FileState) {
	m.fileChangesTotal.Inc()
	if fs == nil {
		m.fileActive.Set(0)
		return
	}
	m.fileActive.Set(1)
}

// SetConnectionState records the channel state.
func (m *Metrics) SetConnectionState(s domain.ConnectionState) {
	m.connectionState.Set(float64(s))
	if s == domain.Connected {
		m.connectsTotal.Inc()
	}
}

// Handler returns the metrics HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve serves /metrics on ln until ctx is canceled.
func Serve(ctx context.Context, ln net.Listener, g prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and serves /metrics until ctx is canceled.
func ListenAndServe(ctx context.Context, addr string, g prometheus.Gatherer, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, g, logger)
}

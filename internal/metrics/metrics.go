// Package metrics exposes the same callback surface applications
// register against a peer.Peer as Prometheus gauges/counters, served over
// an HTTP handler mounted at /metrics the way the reference sockstats
// exporter mounts promhttp.Handler() alongside its own collector.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kulve/pleco-go/internal/logger"
	"github.com/kulve/pleco-go/internal/transport"
)

// Exporter owns a private Prometheus registry scoped to one peer link,
// labeled by role and peer id so a process running both a controller and
// a relay-facing link doesn't collide on metric identity.
type Exporter struct {
	registry *prometheus.Registry

	rtt              prometheus.Histogram
	resendTimeoutMs  prometheus.Gauge
	resentPackets    prometheus.Counter
	networkRateRx    prometheus.Gauge
	networkRateTx    prometheus.Gauge
	connectionStatus prometheus.Gauge
}

// New builds an Exporter with its metrics registered on a private
// registry; Callbacks returns the observer functions to merge with (or
// pass directly as) the application's own callbacks.
func New(role, peerID string) *Exporter {
	labels := prometheus.Labels{"role": role, "peer_id": peerID}
	reg := prometheus.NewRegistry()

	e := &Exporter{
		registry: reg,
		rtt: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "pleco",
			Name:        "rtt_milliseconds",
			Help:        "Observed round-trip time samples for acknowledged high-priority sends.",
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
			ConstLabels: labels,
		}),
		resendTimeoutMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pleco",
			Name:        "resend_timeout_milliseconds",
			Help:        "Current adaptive resend timeout.",
			ConstLabels: labels,
		}),
		resentPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "pleco",
			Name:        "resent_packets_total",
			Help:        "Total high-priority frames retransmitted.",
			ConstLabels: labels,
		}),
		networkRateRx: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pleco",
			Name:        "network_rate_rx_bytes_per_second",
			Help:        "Inbound payload byte rate over the last measurement window.",
			ConstLabels: labels,
		}),
		networkRateTx: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pleco",
			Name:        "network_rate_tx_bytes_per_second",
			Help:        "Outbound payload byte rate over the last measurement window.",
			ConstLabels: labels,
		}),
		connectionStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pleco",
			Name:        "connection_status",
			Help:        "0=lost, 1=retrying, 2=ok.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(e.rtt, e.resendTimeoutMs, e.resentPackets, e.networkRateRx, e.networkRateTx, e.connectionStatus)
	return e
}

// Callbacks returns the transport.Callbacks fields this exporter fills
// in; the caller merges these into its own Callbacks value (the
// struct-of-optional-functions shape makes that a plain field-by-field
// copy, not wrapping or interface composition).
func (e *Exporter) Callbacks() transport.Callbacks {
	return transport.Callbacks{
		OnRtt:           func(ms int) { e.rtt.Observe(float64(ms)) },
		OnResendTimeout: func(ms int) { e.resendTimeoutMs.Set(float64(ms)) },
		OnResentPackets: func(n uint32) { e.resentPackets.Add(1); _ = n },
		OnNetworkRate: func(payloadRx, totalRx, payloadTx, totalTx int) {
			e.networkRateRx.Set(float64(payloadRx))
			e.networkRateTx.Set(float64(payloadTx))
		},
		OnConnectionStatus: func(s transport.ConnectionStatus) {
			e.connectionStatus.Set(float64(s))
		},
	}
}

// Handler returns the /metrics HTTP handler for this exporter's registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server on addr exposing /metrics and blocks until
// ctx is cancelled, then shuts the server down with a bounded grace
// period. A background goroutine does the listening; Serve itself
// returns once the server is shut down or fails to start.
func Serve(ctx context.Context, addr string, e *Exporter) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", "error", err)
		return err
	}
	return nil
}

package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/LdDl/mot-counter/counting"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes counter activity to Prometheus.
// It implements counting.Observer, so it can be attached to session directly.
type Metrics struct {
	registry *prometheus.Registry

	crossings       *prometheus.CounterVec
	sinkErrors      prometheus.Counter
	resets          prometheus.Counter
	framesProcessed prometheus.Counter
	inside          prometheus.Gauge
	outside         prometheus.Gauge
	fps             prometheus.Gauge
	activeTracks    prometheus.Gauge
}

// New creates metrics on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		crossings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "counter_crossing_events_total",
			Help: "Total line crossings by direction",
		}, []string{"direction"}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "counter_sink_errors_total",
			Help: "Total failed writes to the crossing log",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "counter_resets_total",
			Help: "Total counter resets requested by operator",
		}),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "counter_frames_processed_total",
			Help: "Total frames passed through the counting loop",
		}),
		inside: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "counter_in",
			Help: "IN count since last reset",
		}),
		outside: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "counter_out",
			Help: "OUT count since last reset",
		}),
		fps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "counter_fps",
			Help: "Processing rate measured over the last second",
		}),
		activeTracks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "counter_tracks",
			Help: "Number of tracks remembered by the session",
		}),
	}
	m.registry.MustRegister(
		m.crossings,
		m.sinkErrors,
		m.resets,
		m.framesProcessed,
		m.inside,
		m.outside,
		m.fps,
		m.activeTracks,
	)
	// Expose both directions from the start
	m.crossings.WithLabelValues(counting.DirectionIn.String())
	m.crossings.WithLabelValues(counting.DirectionOut.String())
	return m
}

// Registry returns underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnCrossing implements counting.Observer
func (m *Metrics) OnCrossing(event counting.CrossingEvent) {
	m.crossings.WithLabelValues(event.Direction.String()).Inc()
	switch event.Direction {
	case counting.DirectionIn:
		m.inside.Inc()
	case counting.DirectionOut:
		m.outside.Inc()
	}
}

// OnSinkError implements counting.Observer
func (m *Metrics) OnSinkError(err error) {
	m.sinkErrors.Inc()
}

// OnReset implements counting.Observer
func (m *Metrics) OnReset() {
	m.resets.Inc()
	m.inside.Set(0)
	m.outside.Set(0)
	m.activeTracks.Set(0)
}

// ObserveFrame records per-frame loop state
func (m *Metrics) ObserveFrame(snapshot counting.Snapshot, fps float64) {
	m.framesProcessed.Inc()
	m.inside.Set(float64(snapshot.In))
	m.outside.Set(float64(snapshot.Out))
	m.activeTracks.Set(float64(snapshot.Tracks))
	m.fps.Set(fps)
}

// Handler returns HTTP handler for Prometheus scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return errors.Wrapf(err, "metrics server on %s", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "can't shutdown metrics server")
		}
		return nil
	}
}

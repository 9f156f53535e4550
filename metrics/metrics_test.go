package metrics

import (
	"context"
	"errors"
	"image"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LdDl/mot-counter/counting"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write(counting.CrossingEvent) error { return errors.New("disk full") }
func (failingWriter) Close() error                        { return nil }

func TestMetricsObserveSession(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := New()
	sink := counting.NewEventSink(failingWriter{}, logger)
	session := counting.NewSession(
		counting.NewLineFromPoints(image.Pt(100, 0), image.Pt(100, 200)),
		sink,
		counting.WithLogger(logger),
		counting.WithObserver(m),
	)

	session.OnDetection(1, 90)
	session.OnDetection(1, 110)
	session.OnDetection(2, 110)
	session.OnDetection(2, 90)
	session.OnDetection(3, 120)
	session.OnDetection(3, 80)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.crossings.WithLabelValues("IN")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.crossings.WithLabelValues("OUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inside))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.outside))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sinkErrors))

	m.ObserveFrame(session.Snapshot(), 24.5)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesProcessed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeTracks))
	assert.Equal(t, 24.5, testutil.ToFloat64(m.fps))

	session.Reset()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resets))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inside))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.outside))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.crossings.WithLabelValues("OUT")), "totals survive reset")
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	count, err := testutil.GatherAndCount(m.Registry(), "counter_crossing_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	expected := `
# HELP counter_resets_total Total counter resets requested by operator
# TYPE counter_resets_total counter
counter_resets_total 0
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "counter_resets_total"))
}

func TestServeStopsOnCancel(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Serve(ctx, "127.0.0.1:0")
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

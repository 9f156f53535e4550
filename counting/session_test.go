package counting

import (
	"fmt"
	"image"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryWriter struct {
	events []CrossingEvent
	err    error
	closed bool
}

func (writer *memoryWriter) Write(event CrossingEvent) error {
	if writer.err != nil {
		return writer.err
	}
	writer.events = append(writer.events, event)
	return nil
}

func (writer *memoryWriter) Close() error {
	writer.closed = true
	return nil
}

type countingObserver struct {
	crossings  int
	sinkErrors int
	resets     int
}

func (observer *countingObserver) OnCrossing(CrossingEvent) { observer.crossings++ }
func (observer *countingObserver) OnSinkError(error)        { observer.sinkErrors++ }
func (observer *countingObserver) OnReset()                 { observer.resets++ }

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 14, 3, 12, 123456000, time.Local)
}

func newTestSession(t *testing.T, x int, writer EventWriter) *Session {
	t.Helper()
	logger, _ := test.NewNullLogger()
	sink := NewEventSink(writer, logger)
	return NewSession(Line{X: x, YMin: 0, YMax: 480}, sink, WithClock(fixedClock), WithLogger(logger))
}

func TestSessionSingleObservationNeverCrosses(t *testing.T) {
	writer := &memoryWriter{}
	session := newTestSession(t, 200, writer)
	for id, cx := range []int{0, 199, 200, 201, 1000} {
		_, crossed := session.OnDetection(id, cx)
		assert.False(t, crossed)
	}
	assert.Equal(t, Counters{}, session.Snapshot().Counters)
	assert.Empty(t, writer.events)
}

func TestSessionScenarioIn(t *testing.T) {
	writer := &memoryWriter{}
	session := newTestSession(t, 200, writer)

	_, crossed := session.OnDetection(7, 100)
	require.False(t, crossed)
	event, crossed := session.OnDetection(7, 250)
	require.True(t, crossed)

	expected := CrossingEvent{Time: fixedClock(), TrackID: 7, Direction: DirectionIn, PrevCX: 100, CurrCX: 250}
	if diff := cmp.Diff(expected, event); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
	snapshot := session.Snapshot()
	assert.Equal(t, Counters{In: 1, Out: 0}, snapshot.Counters)
	assert.Equal(t, []string{"14:03:12 IN ID:7"}, snapshot.Recent)
	require.Len(t, writer.events, 1)
	assert.Equal(t, []string{"2024-03-01T14:03:12.123456", "7", "IN", "100", "250"}, writer.events[0].Record())
}

func TestSessionScenarioOut(t *testing.T) {
	writer := &memoryWriter{}
	session := newTestSession(t, 200, writer)
	session.OnDetection(3, 300)
	event, crossed := session.OnDetection(3, 150)
	require.True(t, crossed)
	assert.Equal(t, DirectionOut, event.Direction)
	assert.Equal(t, Counters{In: 0, Out: 1}, session.Snapshot().Counters)
	assert.Len(t, writer.events, 1)
}

func TestSessionScenarioStartOnLine(t *testing.T) {
	writer := &memoryWriter{}
	session := newTestSession(t, 200, writer)
	session.OnDetection(9, 200)
	_, crossed := session.OnDetection(9, 250)
	assert.False(t, crossed)
	assert.Equal(t, Counters{}, session.Snapshot().Counters)
	assert.Empty(t, writer.events)
}

func TestSessionBackAndForth(t *testing.T) {
	session := newTestSession(t, 200, nil)
	for _, cx := range []int{100, 250, 150, 260, 260, 100} {
		session.OnDetection(1, cx)
	}
	assert.Equal(t, Counters{In: 2, Out: 2}, session.Snapshot().Counters)
}

func TestSessionReset(t *testing.T) {
	writer := &memoryWriter{}
	observer := &countingObserver{}
	logger, _ := test.NewNullLogger()
	session := NewSession(Line{X: 200}, NewEventSink(writer, logger), WithLogger(logger), WithObserver(observer))
	session.OnDetection(1, 100)
	session.OnDetection(1, 300)
	session.OnDetection(2, 300)
	session.OnDetection(2, 100)
	require.Equal(t, Counters{In: 1, Out: 1}, session.Snapshot().Counters)

	session.Reset()
	snapshot := session.Snapshot()
	assert.Equal(t, Counters{}, snapshot.Counters)
	assert.Empty(t, snapshot.Recent)
	assert.Equal(t, 0, snapshot.Tracks)
	assert.Len(t, writer.events, 2, "reset must not touch durable log")
	assert.Equal(t, 1, observer.resets)
	assert.Equal(t, 2, observer.crossings)

	// Tracks are forgotten: next sighting is the first one again
	_, crossed := session.OnDetection(1, 100)
	assert.False(t, crossed)

	// Reset of fresh session is fine too
	session.Reset()
	assert.Equal(t, Counters{}, session.Snapshot().Counters)
}

func TestSessionRecentEventsBound(t *testing.T) {
	session := newTestSession(t, 200, nil)
	for id := 0; id < 25; id++ {
		session.OnDetection(id, 100)
		session.OnDetection(id, 300)
		recent := session.Snapshot().Recent
		assert.LessOrEqual(t, len(recent), RecentEventsCapacity)
		assert.Equal(t, fmt.Sprintf("14:03:12 IN ID:%d", id), recent[0])
	}
	assert.Equal(t, 25, session.Snapshot().In)
}

func TestSessionSinkFailureKeepsCounting(t *testing.T) {
	writer := &memoryWriter{err: errors.New("disk full")}
	observer := &countingObserver{}
	logger, hook := test.NewNullLogger()
	session := NewSession(Line{X: 200}, NewEventSink(writer, logger), WithLogger(logger), WithObserver(observer), WithClock(fixedClock))

	session.OnDetection(7, 100)
	_, crossed := session.OnDetection(7, 250)
	require.True(t, crossed)

	snapshot := session.Snapshot()
	assert.Equal(t, 1, snapshot.In)
	assert.Equal(t, []string{"14:03:12 IN ID:7"}, snapshot.Recent)
	assert.Equal(t, 1, observer.sinkErrors)

	var errorEntries int
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			errorEntries++
		}
	}
	assert.Equal(t, 1, errorEntries)
}

func TestSessionProcessFrame(t *testing.T) {
	session := newTestSession(t, 200, nil)
	box := func(x1, x2 int) image.Rectangle { return image.Rect(x1, 10, x2, 100) }

	events := session.ProcessFrame(slices.Values([]Detection{
		TrackedDetection(1, box(80, 120)),
		{Box: box(0, 500)},
		TrackedDetection(2, box(280, 320)),
	}))
	assert.Empty(t, events)
	assert.Equal(t, 2, session.Snapshot().Tracks, "untracked detection must be skipped")

	events = session.ProcessFrame(slices.Values([]Detection{
		TrackedDetection(1, box(230, 270)),
		TrackedDetection(2, box(130, 170)),
	}))
	require.Len(t, events, 2)
	assert.Equal(t, DirectionIn, events[0].Direction)
	assert.Equal(t, 100, events[0].PrevCX)
	assert.Equal(t, 250, events[0].CurrCX)
	assert.Equal(t, DirectionOut, events[1].Direction)
	assert.Equal(t, Counters{In: 1, Out: 1}, session.Snapshot().Counters)
}

func TestSessionWithEvictingStore(t *testing.T) {
	logger, _ := test.NewNullLogger()
	session := NewSession(Line{X: 200}, nil, WithLogger(logger), WithStore(NewMapStoreWithEviction(2)))
	session.ProcessFrame(slices.Values([]Detection{TrackedDetection(1, image.Rect(90, 0, 110, 10))}))
	session.ProcessFrame(slices.Values([]Detection{}))
	session.ProcessFrame(slices.Values([]Detection{}))
	// Track 1 was forgotten, so its reappearance on the other side is a first sighting
	events := session.ProcessFrame(slices.Values([]Detection{TrackedDetection(1, image.Rect(290, 0, 310, 10))}))
	assert.Empty(t, events)
}

func TestSessionClose(t *testing.T) {
	writer := &memoryWriter{}
	session := newTestSession(t, 200, writer)
	require.NoError(t, session.Close())
	assert.True(t, writer.closed)
}

func TestRecentEventsRing(t *testing.T) {
	recent := RecentEvents{}
	for i := 0; i < 13; i++ {
		recent.Push(fmt.Sprint(i))
	}
	assert.Equal(t, []string{"12", "11", "10", "9", "8", "7", "6", "5", "4", "3"}, recent.List())
	recent.Clear()
	assert.Equal(t, 0, recent.Len())
	assert.Empty(t, recent.List())
}

func TestCentroid(t *testing.T) {
	assert.Equal(t, 120, Centroid(image.Rect(100, 0, 141, 10)))
	assert.Equal(t, 5, Centroid(image.Rect(0, 0, 10, 10)))
}

package counting

import (
	"image"
	"iter"
	"time"

	"github.com/sirupsen/logrus"
)

// Detection is a single tracker output. Detections without track identity are ignored.
type Detection struct {
	TrackID    int
	HasTrackID bool
	Box        image.Rectangle
}

// TrackedDetection creates detection carrying track identity
func TrackedDetection(trackID int, box image.Rectangle) Detection {
	return Detection{TrackID: trackID, HasTrackID: true, Box: box}
}

// Counters holds directional counts since last reset
type Counters struct {
	In  int
	Out int
}

// Snapshot is read-only view of session used for rendering
type Snapshot struct {
	Counters
	Recent []string
	Line   Line
	Tracks int
}

// Session aggregates counts for single counting line.
// It is not safe for concurrent use: the processing loop owns it.
type Session struct {
	line      Line
	store     CentroidStore
	sink      *EventSink
	counters  Counters
	now       func() time.Time
	logger    logrus.FieldLogger
	observers []Observer
}

// Option configures Session
type Option func(*Session)

// WithStore overrides default non-evicting store
func WithStore(store CentroidStore) Option {
	return func(session *Session) {
		session.store = store
	}
}

// WithClock overrides time source for event timestamps
func WithClock(now func() time.Time) Option {
	return func(session *Session) {
		session.now = now
	}
}

// WithLogger sets logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(session *Session) {
		session.logger = logger
	}
}

// WithObserver registers observer for crossings, resets and sink failures
func WithObserver(observer Observer) Option {
	return func(session *Session) {
		session.observers = append(session.observers, observer)
	}
}

// NewSession creates session for the confirmed line. Nil sink keeps events in memory.
func NewSession(line Line, sink *EventSink, options ...Option) *Session {
	session := &Session{
		line:   line,
		store:  NewMapStore(),
		sink:   sink,
		now:    time.Now,
		logger: logrus.StandardLogger(),
	}
	for _, option := range options {
		option(session)
	}
	if session.sink == nil {
		session.sink = NewEventSink(nil, session.logger)
	}
	for _, observer := range session.observers {
		session.sink.AddObserver(observer)
	}
	return session
}

// Line returns counting line
func (session *Session) Line() Line {
	return session.line
}

// OnDetection applies single observation of track.
// Second value is true when the observation produced a crossing.
func (session *Session) OnDetection(trackID, cx int) (CrossingEvent, bool) {
	prevCX, seen := session.store.Observe(trackID, cx)
	if !seen {
		return CrossingEvent{}, false
	}
	direction := Classify(prevCX, cx, session.line)
	switch direction {
	case DirectionIn:
		session.counters.In++
	case DirectionOut:
		session.counters.Out++
	default:
		return CrossingEvent{}, false
	}
	event := CrossingEvent{
		Time:      session.now(),
		TrackID:   trackID,
		Direction: direction,
		PrevCX:    prevCX,
		CurrCX:    cx,
	}
	session.logger.WithFields(logrus.Fields{
		"track_id":  trackID,
		"direction": direction.String(),
		"prev_cx":   prevCX,
		"curr_cx":   cx,
	}).Info("Line crossed")
	session.sink.Record(event)
	for _, observer := range session.observers {
		observer.OnCrossing(event)
	}
	return event, true
}

// ProcessFrame applies all detections of a single frame in order and returns produced events
func (session *Session) ProcessFrame(detections iter.Seq[Detection]) []CrossingEvent {
	var events []CrossingEvent
	for detection := range detections {
		if !detection.HasTrackID {
			continue
		}
		event, crossed := session.OnDetection(detection.TrackID, Centroid(detection.Box))
		if crossed {
			events = append(events, event)
		}
	}
	session.store.EndFrame()
	return events
}

// Reset zeroes counters, forgets tracks and clears recent events.
// Already persisted events stay on durable record.
func (session *Session) Reset() {
	session.counters = Counters{}
	session.store.Clear()
	session.sink.ClearRecent()
	session.logger.Info("Counters reset")
	for _, observer := range session.observers {
		observer.OnReset()
	}
}

// Snapshot returns current state without side effects
func (session *Session) Snapshot() Snapshot {
	return Snapshot{
		Counters: session.counters,
		Recent:   session.sink.Recent(),
		Line:     session.line,
		Tracks:   session.store.Len(),
	}
}

// Close closes durable storage behind the sink
func (session *Session) Close() error {
	return session.sink.Close()
}

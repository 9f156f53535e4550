package counting

import (
	"github.com/sirupsen/logrus"
)

// EventWriter is durable append-only storage for crossing events
type EventWriter interface {
	Write(event CrossingEvent) error
	Close() error
}

// Observer receives notifications about session activity (metrics, UI hooks)
type Observer interface {
	OnCrossing(event CrossingEvent)
	OnSinkError(err error)
	OnReset()
}

// EventSink records crossing events durably and keeps recent summaries in memory.
// Durable write failures never affect the recent events log.
type EventSink struct {
	writer    EventWriter
	recent    RecentEvents
	logger    logrus.FieldLogger
	observers []Observer
}

// NewEventSink creates sink. Nil writer keeps events in memory only.
func NewEventSink(writer EventWriter, logger logrus.FieldLogger) *EventSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EventSink{
		writer: writer,
		logger: logger,
	}
}

// AddObserver registers observer notified about durable write failures
func (sink *EventSink) AddObserver(observer Observer) {
	sink.observers = append(sink.observers, observer)
}

// Record pushes summary to recent events log and appends event to durable storage.
// Write failures are logged and reported to observers.
func (sink *EventSink) Record(event CrossingEvent) {
	sink.recent.Push(event.Summary())
	if sink.writer == nil {
		return
	}
	if err := sink.writer.Write(event); err != nil {
		sink.logger.WithError(err).WithFields(logrus.Fields{
			"track_id":  event.TrackID,
			"direction": event.Direction.String(),
		}).Error("Error writing crossing event")
		for _, observer := range sink.observers {
			observer.OnSinkError(err)
		}
	}
}

// Recent returns recent summaries, newest first
func (sink *EventSink) Recent() []string {
	return sink.recent.List()
}

// ClearRecent drops in-memory summaries. Durable storage is untouched.
func (sink *EventSink) ClearRecent() {
	sink.recent.Clear()
}

// Close closes durable storage
func (sink *EventSink) Close() error {
	if sink.writer == nil {
		return nil
	}
	return sink.writer.Close()
}

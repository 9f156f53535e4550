package eventlog

import (
	stderrors "errors"

	"github.com/LdDl/mot-counter/counting"
)

// Multi fans every event out to all writers.
// Failure of one writer does not prevent others from receiving the event.
type Multi []counting.EventWriter

// Write implements counting.EventWriter
func (writers Multi) Write(event counting.CrossingEvent) error {
	var errs []error
	for _, w := range writers {
		if err := w.Write(event); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Close implements counting.EventWriter
func (writers Multi) Close() error {
	var errs []error
	for _, w := range writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

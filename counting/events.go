package counting

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// RecentEventsCapacity is the bound of recent events log
	RecentEventsCapacity = 10
	// TimestampLayout is ISO-8601 local time with microseconds, no zone
	TimestampLayout = "2006-01-02T15:04:05.000000"
	summaryLayout   = "15:04:05"
)

// CrossingEvent is an immutable record of a single crossing
type CrossingEvent struct {
	Time      time.Time
	TrackID   int
	Direction Direction
	PrevCX    int
	CurrCX    int
}

// Timestamp returns ISO-8601 representation of event time
func (event CrossingEvent) Timestamp() string {
	return event.Time.Format(TimestampLayout)
}

// Summary returns compact human-readable description, e.g. "14:03:12 IN ID:7"
func (event CrossingEvent) Summary() string {
	return fmt.Sprintf("%s %s ID:%d", event.Time.Format(summaryLayout), event.Direction, event.TrackID)
}

// Record returns durable row fields: timestamp, track id, direction, prev_cx, curr_cx
func (event CrossingEvent) Record() []string {
	return []string{
		event.Timestamp(),
		strconv.Itoa(event.TrackID),
		event.Direction.String(),
		strconv.Itoa(event.PrevCX),
		strconv.Itoa(event.CurrCX),
	}
}

// RecentEvents is a bounded ring of summaries. Newest entry goes first.
type RecentEvents struct {
	buf   [RecentEventsCapacity]string
	head  int
	count int
}

// Push inserts summary at front evicting the oldest one if full
func (recent *RecentEvents) Push(summary string) {
	recent.head = (recent.head + RecentEventsCapacity - 1) % RecentEventsCapacity
	recent.buf[recent.head] = summary
	if recent.count < RecentEventsCapacity {
		recent.count++
	}
}

// Len returns number of stored summaries
func (recent *RecentEvents) Len() int {
	return recent.count
}

// Clear drops all summaries
func (recent *RecentEvents) Clear() {
	*recent = RecentEvents{}
}

// List returns copy of summaries, newest first
func (recent *RecentEvents) List() []string {
	list := make([]string, recent.count)
	for i := 0; i < recent.count; i++ {
		list[i] = recent.buf[(recent.head+i)%RecentEventsCapacity]
	}
	return list
}

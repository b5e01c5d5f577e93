package model

import (
	"sort"
	"time"
)

// Event is a single scheduled occurrence (e.g. one load-shedding slot).
type Event struct {
	// Start is the absolute start time, carrying the offset it was published with.
	Start time.Time
	// End is optional; zero when the feed did not provide one. Evaluation
	// only ever looks at Start.
	End time.Time

	Note string
}

// HasEnd reports whether the event carries a duration.
func (e Event) HasEnd() bool {
	return !e.End.IsZero()
}

// Schedule is the set of events decoded from one payload. It is replaced
// wholesale on every successful parse and never mutated in place.
type Schedule struct {
	Events []Event
}

// Sorted returns a copy of the schedule ordered by Start ascending.
// Events with equal Start keep their relative order.
func (s Schedule) Sorted() Schedule {
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return Schedule{Events: events}
}

// Len returns the number of events.
func (s Schedule) Len() int {
	return len(s.Events)
}

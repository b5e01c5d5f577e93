// Package engine decides whether the next scheduled event is close enough to
// act on. It does no I/O.
package engine

import (
	"time"

	"shedcmd/internal/model"
)

// Result is the outcome of one evaluation.
type Result struct {
	// Upcoming is false when no event starts after now.
	Upcoming bool
	// Event is the soonest strictly-future event. Valid only when Upcoming.
	Event model.Event
	// DeltaMinutes is the whole minutes from now until Event.Start,
	// truncated toward zero.
	DeltaMinutes int64
	// Triggered is set when DeltaMinutes is strictly below the threshold.
	Triggered bool
	// Commands is the list to dispatch when Triggered, nil otherwise.
	Commands []string
	// Anomaly is set when the delta came out negative, which can only happen
	// through clock skew between selection and measurement.
	Anomaly bool
}

// Evaluate selects the soonest event starting strictly after now and compares
// its distance to thresholdMinutes.
func Evaluate(s model.Schedule, now time.Time, thresholdMinutes int, commands []string) Result {
	ev, ok := Next(s, now)
	if !ok {
		return Result{}
	}

	delta := Delta(ev.Start, now)
	r := Result{
		Upcoming:     true,
		Event:        ev,
		DeltaMinutes: delta,
		Anomaly:      delta < 0,
	}
	if delta < int64(thresholdMinutes) {
		r.Triggered = true
		r.Commands = commands
	}
	return r
}

// Next returns the event with the minimum start strictly after now.
func Next(s model.Schedule, now time.Time) (model.Event, bool) {
	var (
		best  model.Event
		found bool
	)
	for _, ev := range s.Events {
		if !ev.Start.After(now) {
			continue
		}
		if !found || ev.Start.Before(best.Start) {
			best = ev
			found = true
		}
	}
	return best, found
}

// Delta returns whole minutes from now until start, truncated toward zero.
func Delta(start, now time.Time) int64 {
	return int64(start.Sub(now) / time.Minute)
}

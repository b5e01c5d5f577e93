package schedule

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "shedcmd/internal/log"
	"shedcmd/internal/model"
)

// maxOccurrencesPerEvent caps a single RRULE expansion.
const maxOccurrencesPerEvent = 5000

// expandRecurring turns one recurring VEVENT into concrete events whose start
// falls inside [rangeStart, rangeEnd], honouring EXDATE and preserving the
// original duration.
func expandRecurring(ev vevent, rangeStart, rangeEnd time.Time) ([]model.Event, error) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	starts := set.Between(rangeStart.In(loc), rangeEnd.In(loc), true)
	if len(starts) > maxOccurrencesPerEvent {
		appLog.Info("recurrence expansion truncated", "uid", ev.UID, "cap", maxOccurrencesPerEvent)
		starts = starts[:maxOccurrencesPerEvent]
	}

	var dur time.Duration
	if !ev.End.IsZero() {
		dur = ev.End.Sub(ev.Start)
	}

	out := make([]model.Event, 0, len(starts))
	for _, s := range starts {
		occ := model.Event{Start: s, Note: ev.Summary}
		if dur > 0 {
			occ.End = s.Add(dur)
		}
		out = append(out, occ)
	}
	return out, nil
}

package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"shedcmd/internal/model"
)

// vevent is the subset of a VEVENT needed to produce events.
type vevent struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool

	RawRRule string
	ExDates  []time.Time
}

// ParseICS decodes an iCalendar payload. Single events are kept as-is;
// recurring events (RRULE) are expanded into occurrences that start inside
// [rangeStart, rangeEnd].
func ParseICS(payload string, rangeStart, rangeEnd time.Time) (model.Schedule, error) {
	if strings.TrimSpace(payload) == "" {
		return model.Schedule{}, errors.New("decoding calendar: empty payload")
	}
	if rangeEnd.Before(rangeStart) {
		return model.Schedule{}, errors.New("decoding calendar: range end is before range start")
	}

	cal, err := ical.ParseCalendar(strings.NewReader(payload))
	if err != nil {
		return model.Schedule{}, fmt.Errorf("decoding calendar: %w", err)
	}

	events := make([]model.Event, 0)
	for i, comp := range cal.Events() {
		ve, err := parseVEvent(comp)
		if err != nil {
			return model.Schedule{}, fmt.Errorf("decoding calendar: vevent %d: %w", i, err)
		}
		if ve.RawRRule == "" {
			events = append(events, model.Event{Start: ve.Start, End: ve.End, Note: ve.Summary})
			continue
		}
		occ, err := expandRecurring(ve, rangeStart, rangeEnd)
		if err != nil {
			return model.Schedule{}, fmt.Errorf("decoding calendar: vevent %d (%s): %w", i, ve.UID, err)
		}
		events = append(events, occ...)
	}
	return model.Schedule{Events: events}, nil
}

func parseVEvent(ve *ical.VEvent) (vevent, error) {
	var out vevent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	// VALUE=DATE or no 'T' in the value -> all-day
	if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.AllDay = true
	}
	if !strings.Contains(dtStart.Value, "T") {
		out.AllDay = true
	}

	var err error
	if out.AllDay {
		out.Start, err = ve.GetAllDayStartAt()
	} else {
		out.Start, err = ve.GetStartAt()
	}
	if err != nil {
		return out, fmt.Errorf("invalid DTSTART %q: %w", dtStart.Value, err)
	}

	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		if out.AllDay {
			out.End, err = ve.GetAllDayEndAt()
		} else {
			out.End, err = ve.GetEndAt()
		}
		if err != nil {
			return out, fmt.Errorf("invalid DTEND: %w", err)
		}
	} else if out.AllDay {
		out.End = out.Start.Add(24 * time.Hour)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	// EXDATE may repeat and each may hold a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, out.Start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	return out, nil
}

// parseICSTime parses a basic ICS date/date-time string. Values without a
// trailing Z are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}

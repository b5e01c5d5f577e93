// Package schedule decodes raw feed payloads into a model.Schedule.
//
// The canonical payload is JSON:
//
//	{"events": [{"start": "2030-01-01T00:05:00+00:00", "end": "...", "note": "Stage 2"}]}
//
// iCalendar feeds are accepted when the fetch format is "ics".
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"shedcmd/internal/model"
)

// Format selects the payload decoder.
type Format string

const (
	FormatJSON Format = "json"
	FormatICS  Format = "ics"
)

// DefaultHorizon bounds recurrence expansion for iCalendar feeds.
const DefaultHorizon = 7 * 24 * time.Hour

// ParseFormat validates a configured format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatICS:
		return FormatICS, nil
	default:
		return "", fmt.Errorf("unknown schedule format %q (want json or ics)", s)
	}
}

// EmptyPayload returns a well-formed payload with no events. The poll loop
// seeds its cache with it so the first evaluations have something to parse.
func EmptyPayload(f Format) string {
	if f == FormatICS {
		return "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//shedcmd//schedule//EN\r\nEND:VCALENDAR\r\n"
	}
	return `{"events": []}`
}

// Options carries the inputs some formats need beyond the payload itself.
type Options struct {
	// Now anchors recurrence expansion. Zero means time.Now().
	Now time.Time
	// Horizon is how far past Now recurrences are expanded. Zero means DefaultHorizon.
	Horizon time.Duration
}

// Parse decodes payload according to f. Any malformed event fails the whole
// batch; no partial schedule is returned.
func Parse(f Format, payload string, opts Options) (model.Schedule, error) {
	switch f {
	case "", FormatJSON:
		return ParseJSON(payload)
	case FormatICS:
		if opts.Now.IsZero() {
			opts.Now = time.Now()
		}
		if opts.Horizon <= 0 {
			opts.Horizon = DefaultHorizon
		}
		return ParseICS(payload, opts.Now.Add(-24*time.Hour), opts.Now.Add(opts.Horizon))
	default:
		return model.Schedule{}, fmt.Errorf("unknown schedule format %q", f)
	}
}

type jsonPayload struct {
	Events *[]jsonEvent `json:"events"`
}

type jsonEvent struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
	Note  *string `json:"note"`
}

// ParseJSON decodes the canonical JSON payload. start and note are required
// on every event; end is optional.
func ParseJSON(payload string) (model.Schedule, error) {
	var p jsonPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return model.Schedule{}, fmt.Errorf("decoding schedule: %w", err)
	}
	if p.Events == nil {
		return model.Schedule{}, errors.New("decoding schedule: missing events array")
	}

	events := make([]model.Event, 0, len(*p.Events))
	for i, raw := range *p.Events {
		ev, err := raw.toEvent()
		if err != nil {
			return model.Schedule{}, fmt.Errorf("decoding schedule: event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return model.Schedule{Events: events}, nil
}

func (r jsonEvent) toEvent() (model.Event, error) {
	if r.Start == nil {
		return model.Event{}, errors.New("missing start")
	}
	if r.Note == nil {
		return model.Event{}, errors.New("missing note")
	}
	start, err := time.Parse(time.RFC3339, *r.Start)
	if err != nil {
		return model.Event{}, fmt.Errorf("invalid start %q: %w", *r.Start, err)
	}
	ev := model.Event{Start: start, Note: *r.Note}
	if r.End != nil && *r.End != "" {
		end, err := time.Parse(time.RFC3339, *r.End)
		if err != nil {
			return model.Event{}, fmt.Errorf("invalid end %q: %w", *r.End, err)
		}
		ev.End = end
	}
	return ev, nil
}

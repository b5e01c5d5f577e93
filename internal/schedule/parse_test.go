package schedule

import (
	"strings"
	"testing"
	"time"
)

func TestParseJSONScenarioPayload(t *testing.T) {
	s, err := ParseJSON(`{"events":[{"start":"2030-01-01T00:05:00+00:00","note":"outage A"}]}`)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	ev := s.Events[0]
	want := time.Date(2030, 1, 1, 0, 5, 0, 0, time.UTC)
	if !ev.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", ev.Start, want)
	}
	if ev.Note != "outage A" {
		t.Errorf("Note = %q", ev.Note)
	}
	if ev.HasEnd() {
		t.Errorf("End should be absent, got %v", ev.End)
	}
}

func TestParseJSONWithEndAndOffset(t *testing.T) {
	s, err := ParseJSON(`{"events":[
		{"start":"2030-01-01T12:00:00+02:00","end":"2030-01-01T14:30:00+02:00","note":"Stage 2"},
		{"start":"2030-01-01T08:00:00+02:00","end":null,"note":""}
	]}`)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if got := s.Events[0].End.Sub(s.Events[0].Start); got != 150*time.Minute {
		t.Errorf("duration = %v, want 2h30m", got)
	}
	if _, off := s.Events[0].Start.Zone(); off != 2*60*60 {
		t.Errorf("offset = %d, want +02:00", off)
	}
	if s.Events[1].Note != "" || s.Events[1].HasEnd() {
		t.Errorf("second event = %+v, want empty note and no end", s.Events[1])
	}
}

func TestParseJSONEmptySchedule(t *testing.T) {
	s, err := ParseJSON(EmptyPayload(FormatJSON))
	if err != nil {
		t.Fatalf("ParseJSON(empty): %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
}

func TestParseJSONErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"malformed json", `{"events": [`, "decoding schedule"},
		{"not an object", `[]`, "decoding schedule"},
		{"missing events", `{"items": []}`, "missing events array"},
		{"missing start", `{"events":[{"note":"x"}]}`, "missing start"},
		{"missing note", `{"events":[{"start":"2030-01-01T00:00:00Z"}]}`, "missing note"},
		{"bad start", `{"events":[{"start":"01-01-2030 00:00","note":"x"}]}`, "invalid start"},
		{"start without offset", `{"events":[{"start":"2030-01-01T00:00:00","note":"x"}]}`, "invalid start"},
		{"bad end", `{"events":[{"start":"2030-01-01T00:00:00Z","end":"soon","note":"x"}]}`, "invalid end"},
		{"one bad event fails batch", `{"events":[
			{"start":"2030-01-01T00:00:00Z","note":"ok"},
			{"start":"nope","note":"bad"}]}`, "event 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseJSON(tt.payload)
			if err == nil {
				t.Fatalf("expected error, got schedule %+v", s)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %q, want it to contain %q", err, tt.wantErr)
			}
			if s.Len() != 0 {
				t.Errorf("partial schedule returned: %d events", s.Len())
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{" ICS ", FormatICS, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDispatchesOnFormat(t *testing.T) {
	s, err := Parse(FormatJSON, `{"events":[{"start":"2030-01-01T00:00:00Z","note":"x"}]}`, Options{})
	if err != nil || s.Len() != 1 {
		t.Fatalf("Parse(json) = %d events, %v", s.Len(), err)
	}
	if _, err := Parse(Format("yaml"), "{}", Options{}); err == nil {
		t.Error("Parse with unknown format should fail")
	}
}

package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	origNow := now
	now = func() time.Time { return time.Date(2030, 1, 1, 0, 5, 9, 0, time.UTC) }
	t.Cleanup(func() {
		SetOutput(&bytes.Buffer{})
		SetLevel(LevelInfo)
		now = origNow
	})
	return &buf
}

func TestInfoLineFormat(t *testing.T) {
	buf := capture(t, LevelInfo)
	Info("outage A in 5 mins", "tick", 3)

	want := "01-01-2030 00:05:09 | [INFO] outage A in 5 mins tick=3\n"
	if got := buf.String(); got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestErrorPrependsErr(t *testing.T) {
	buf := capture(t, LevelInfo)
	Error("fetch failed", errors.New("dial tcp: refused"), "url", "https://example.com")

	got := buf.String()
	if !strings.Contains(got, `[ERROR] fetch failed err="dial tcp: refused" url=https://example.com`) {
		t.Errorf("unexpected line: %q", got)
	}
}

func TestLevelFilter(t *testing.T) {
	buf := capture(t, LevelError)
	Info("hidden")
	Debug("hidden too")
	Error("shown", nil)

	got := buf.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("info/debug lines should be filtered at ERROR level: %q", got)
	}
	if !strings.Contains(got, "shown") {
		t.Errorf("error line missing: %q", got)
	}
}

func TestDebugEnabled(t *testing.T) {
	buf := capture(t, LevelDebug)
	Debug("cache reused", "tick", 1)
	if !strings.Contains(buf.String(), "[DEBUG] cache reused tick=1") {
		t.Errorf("debug line missing: %q", buf.String())
	}
}

func TestOddKVIgnored(t *testing.T) {
	if got := formatKVs("a", 1, "dangling"); got != " a=1" {
		t.Errorf("formatKVs = %q, want %q", got, " a=1")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"ERROR", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

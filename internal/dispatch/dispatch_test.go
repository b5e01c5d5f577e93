package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDispatchRunsInOrder(t *testing.T) {
	dir := t.TempDir()
	s := &Shell{Dir: dir}
	results := s.Dispatch(context.Background(), []string{
		"echo first >> order.txt",
		"echo second >> order.txt",
		"echo third >> order.txt",
	}, nil)

	if len(results) != 3 || Failed(results) != 0 {
		t.Fatalf("results = %+v", results)
	}
	data, err := os.ReadFile(filepath.Join(dir, "order.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "first\nsecond\nthird\n" {
		t.Errorf("order.txt = %q", got)
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has index %d", i, r.Index)
		}
	}
}

func TestDispatchFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	s := &Shell{Dir: dir}
	results := s.Dispatch(context.Background(), []string{
		"touch a",
		"exit 3",
		"definitely-not-a-command-shedcmd",
		"touch b",
	}, nil)

	if len(results) != 4 {
		t.Fatalf("len = %d, want 4", len(results))
	}
	if !results[0].OK() || !results[3].OK() {
		t.Errorf("first/last should succeed: %+v", results)
	}
	if results[1].ExitCode != 3 || results[1].OK() {
		t.Errorf("exit 3 result = %+v", results[1])
	}
	if results[2].ExitCode != 127 {
		t.Errorf("unknown command exit = %d, want 127", results[2].ExitCode)
	}
	if Failed(results) != 2 {
		t.Errorf("Failed = %d, want 2", Failed(results))
	}
	for _, name := range []string{"a", "b"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestDispatchWaitsForCompletion(t *testing.T) {
	dir := t.TempDir()
	s := &Shell{Dir: dir}
	results := s.Dispatch(context.Background(), []string{
		"sleep 0.2 && echo slow > marker",
		"cat marker",
	}, nil)
	if results[1].Output != "slow" {
		t.Errorf("second command saw %q, want output of the first", results[1].Output)
	}
}

func TestDispatchTimeout(t *testing.T) {
	s := &Shell{Timeout: 100 * time.Millisecond}
	start := time.Now()
	results := s.Dispatch(context.Background(), []string{"sleep 5", "echo after"}, nil)
	if time.Since(start) > 4*time.Second {
		t.Fatalf("timeout not enforced, took %v", time.Since(start))
	}
	if results[0].OK() || !strings.Contains(results[0].Err.Error(), "timed out") {
		t.Errorf("first result = %+v, want timeout", results[0])
	}
	if !results[1].OK() || results[1].Output != "after" {
		t.Errorf("second result = %+v", results[1])
	}
}

func TestDispatchDrainsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Shell{}
	results := s.Dispatch(ctx, []string{"echo still-runs"}, nil)
	if !results[0].OK() || results[0].Output != "still-runs" {
		t.Errorf("result = %+v, want the batch to drain", results[0])
	}
}

func TestDispatchEnv(t *testing.T) {
	s := &Shell{Env: []string{"SHEDCMD_TEST_BASE=base"}}
	results := s.Dispatch(context.Background(), []string{
		`echo "$SHEDCMD_TEST_BASE/$SHEDCMD_EVENT_NOTE"`,
	}, []string{"SHEDCMD_EVENT_NOTE=outage A"})
	if got := results[0].Output; got != "base/outage A" {
		t.Errorf("output = %q", got)
	}
}

func TestDispatchEmpty(t *testing.T) {
	s := &Shell{}
	if results := s.Dispatch(context.Background(), nil, nil); len(results) != 0 {
		t.Errorf("results = %v", results)
	}
}

func TestDispatchBackgroundChildIsSuccess(t *testing.T) {
	s := &Shell{}
	results := s.Dispatch(context.Background(), []string{"sleep 5 &", "echo next"}, nil)
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
	if !results[0].OK() || results[0].ExitCode != 0 {
		t.Errorf("backgrounding command = %+v, want success", results[0])
	}
	if results[0].Duration >= 5*time.Second {
		t.Errorf("waited %s for the background child", results[0].Duration)
	}
	if !results[1].OK() || results[1].Output != "next" {
		t.Errorf("second result = %+v", results[1])
	}
}

func TestTruncateOutput(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 10, "hello"},
		{"abcde", 5, "abcde"},
		{"abcdefghij", 5, "abcde…"},
		{"", 10, ""},
		{"héllo", 2, "h…"},
		{"日本語", 4, "日…"},
	}
	for _, tt := range tests {
		if got := TruncateOutput(tt.in, tt.limit); got != tt.want {
			t.Errorf("TruncateOutput(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

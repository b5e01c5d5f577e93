package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestDefaultConfigRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if _, err := Init(fsys, "/etc/shedcmd/config.yaml"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	cfg, err := Load(fsys, "/etc/shedcmd/config.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Threshold == nil {
		t.Fatal("threshold missing after round trip")
	}
	if got := cfg.ThresholdMinutes(); got != DefaultThreshold {
		t.Errorf("threshold = %d, want %d", got, DefaultThreshold)
	}
	if cfg.Commands == nil {
		t.Error("commands list missing after round trip")
	}
	if cfg.Fetch.URL != "" {
		t.Errorf("fetch.url = %q, want empty", cfg.Fetch.URL)
	}
	if cfg.IntervalMins != DefaultIntervalMins || cfg.FetchOccurrence != DefaultFetchOccurrence {
		t.Errorf("interval/occurrence = %d/%d", cfg.IntervalMins, cfg.FetchOccurrence)
	}
	if _, ok := cfg.Fetch.Headers["token"]; !ok {
		t.Errorf("headers = %v, want a token entry", cfg.Fetch.Headers)
	}
}

func TestDefaultConfigRoundTripTOML(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if _, err := Init(fsys, "/srv/shedcmd.toml"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	data, err := afero.ReadFile(fsys, "/srv/shedcmd.toml")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "threshold = 15") {
		t.Errorf("expected TOML output, got:\n%s", data)
	}

	cfg, err := Load(fsys, "/srv/shedcmd.toml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ThresholdMinutes() != DefaultThreshold || cfg.Commands == nil || cfg.Fetch.URL != "" {
		t.Errorf("unexpected config after TOML round trip: %+v", cfg)
	}
}

func TestInitRefusesExisting(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "config.yaml", []byte("threshold: 5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Init(fsys, "config.yaml")
	if !errors.Is(err, ErrExists) {
		t.Fatalf("Init err = %v, want ErrExists", err)
	}
	data, _ := afero.ReadFile(fsys, "config.yaml")
	if string(data) != "threshold: 5\n" {
		t.Errorf("existing file was modified: %q", data)
	}
}

func TestSavePermissions(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := Save(fsys, "/a/b/config.yaml", DefaultConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	fi, err := fsys.Stat("/a/b/config.yaml")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := fi.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
	entries, _ := afero.ReadDir(fsys, "/a/b")
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	fsys := afero.NewMemMapFs()
	yml := `
threshold: 10
fetch:
  url: https://example.com/area
  headers:
    token: abc
commands:
  - echo one
  - echo two
`
	if err := afero.WriteFile(fsys, "c.yaml", []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(fsys, "c.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IntervalMins != 1 {
		t.Errorf("interval_mins default = %d, want 1", cfg.IntervalMins)
	}
	if cfg.FetchOccurrence != 60 {
		t.Errorf("fetch_occurrence default = %d, want 60", cfg.FetchOccurrence)
	}
	if cfg.Interval() != time.Minute {
		t.Errorf("Interval() = %v", cfg.Interval())
	}
	if len(cfg.Commands) != 2 || cfg.Commands[1] != "echo two" {
		t.Errorf("commands = %v", cfg.Commands)
	}
	if d, _ := cfg.FetchTimeout(); d != 15*time.Second {
		t.Errorf("fetch timeout = %v", d)
	}
	if d, _ := cfg.CommandTimeoutDuration(); d != 0 {
		t.Errorf("command timeout = %v, want unbounded", d)
	}
	if got := cfg.LockPath("c.yaml"); got != "c.yaml.lock" {
		t.Errorf("LockPath = %q", got)
	}
}

func TestLoadStaticResponse(t *testing.T) {
	fsys := afero.NewMemMapFs()
	yml := `
threshold: 10
fetch:
  url: ""
  response:
    code: 200
    content: '{"events": []}'
`
	if err := afero.WriteFile(fsys, "c.yaml", []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(fsys, "c.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Fetch.Response == nil || cfg.Fetch.Response.Content != `{"events": []}` || cfg.Fetch.Response.Code != 200 {
		t.Errorf("response = %+v", cfg.Fetch.Response)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing threshold", "interval_mins: 1\n", "threshold is required"},
		{"bad yaml", "threshold: [\n", "parsing"},
		{"negative interval", "threshold: 1\ninterval_mins: -1\n", "interval_mins"},
		{"bad format", "threshold: 1\nfetch:\n  format: xml\n", "fetch.format"},
		{"bad timeout", "threshold: 1\nfetch:\n  timeout: soon\n", "fetch.timeout"},
		{"bad command timeout", "threshold: 1\ncommand_timeout: soon\n", "command_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			if err := afero.WriteFile(fsys, "c.yaml", []byte(tt.body), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(fsys, "c.yaml")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "nope.yaml")
	if err == nil || !strings.Contains(err.Error(), "run init") {
		t.Errorf("Load err = %v, want hint to run init", err)
	}
	if _, err := Load(afero.NewMemMapFs(), ""); err == nil {
		t.Error("empty path should fail")
	}
}

func TestThresholdZeroIsExplicit(t *testing.T) {
	cfg, err := Decode("c.yaml", []byte("threshold: 0\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Threshold == nil || *cfg.Threshold != 0 {
		t.Errorf("threshold = %v, want explicit 0", cfg.Threshold)
	}
}

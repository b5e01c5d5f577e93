package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DefaultIntervalMins    = 1
	DefaultFetchOccurrence = 60
	DefaultThreshold       = 15
	DefaultFetchTimeout    = "15s"
	DefaultHorizonDays     = 7
	DefaultWorkdir         = "."
	DefaultLogLevel        = "info"
)

var (
	// ErrExists is returned by Init when the target file is already present.
	ErrExists = errors.New("config file already exists")
	// ErrNoThreshold is returned by Validate when threshold is absent.
	ErrNoThreshold = errors.New("threshold is required")
)

// StaticResponse pins the fetch result, bypassing the network entirely.
type StaticResponse struct {
	Code    int    `yaml:"code" toml:"code" json:"code"`
	Content string `yaml:"content" toml:"content" json:"content"`
}

// FetchConfig describes where the schedule comes from.
type FetchConfig struct {
	// URL is the schedule endpoint. Empty is allowed when Response is set or a
	// file source is given on the command line.
	URL string `yaml:"url" toml:"url" json:"url"`

	// Headers are attached to every request. Values of the form
	// "keyring:<service>/<user>" are looked up in the OS keyring at startup.
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty" json:"headers,omitempty"`

	// Response, if set, is returned instead of performing any request.
	Response *StaticResponse `yaml:"response,omitempty" toml:"response,omitempty" json:"response,omitempty"`

	// Format is the payload format: "json" (default) or "ics".
	Format string `yaml:"format,omitempty" toml:"format,omitempty" json:"format,omitempty" jsonschema:"enum=json,enum=ics"`

	// Timeout bounds a single HTTP request (Go duration, default 15s).
	Timeout string `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"`

	// HorizonDays bounds recurrence expansion for ics feeds.
	HorizonDays int `yaml:"horizon_days,omitempty" toml:"horizon_days,omitempty" json:"horizon_days,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the status server.
type BasicAuthConfig struct {
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
}

// StatusConfig controls the optional status HTTP server.
type StatusConfig struct {
	// Listen is the listen address, e.g. "127.0.0.1:8080". Empty disables the server.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// IntervalMins is the evaluation tick period in minutes.
	IntervalMins int `yaml:"interval_mins" toml:"interval_mins" json:"interval_mins"`

	// FetchOccurrence fetches the schedule on every Nth tick.
	FetchOccurrence int `yaml:"fetch_occurrence" toml:"fetch_occurrence" json:"fetch_occurrence"`

	// Threshold is the trigger window in minutes. Commands run when the next
	// event starts in strictly fewer minutes than this.
	Threshold *int `yaml:"threshold" toml:"threshold" json:"threshold"`

	// CommandTimeout bounds each command (Go duration). Empty means unbounded.
	CommandTimeout string `yaml:"command_timeout,omitempty" toml:"command_timeout,omitempty" json:"command_timeout,omitempty"`

	// Workdir is the working directory commands run in.
	Workdir string `yaml:"workdir,omitempty" toml:"workdir,omitempty" json:"workdir,omitempty"`

	// LockFile guards against two schedulers firing the same commands.
	// Empty means "<config path>.lock".
	LockFile string `yaml:"lock_file,omitempty" toml:"lock_file,omitempty" json:"lock_file,omitempty"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level,omitempty" toml:"log_level,omitempty" json:"log_level,omitempty" jsonschema:"enum=debug,enum=info,enum=error"`

	Fetch FetchConfig `yaml:"fetch" toml:"fetch" json:"fetch"`

	// Commands are run in order through the shell when triggered.
	Commands []string `yaml:"commands" toml:"commands" json:"commands"`

	Status StatusConfig `yaml:"status,omitempty" toml:"status,omitempty" json:"status,omitempty"`
}

// DefaultConfig returns the configuration written by init.
func DefaultConfig() *Config {
	threshold := DefaultThreshold
	return &Config{
		IntervalMins:    DefaultIntervalMins,
		FetchOccurrence: DefaultFetchOccurrence,
		Threshold:       &threshold,
		Workdir:         DefaultWorkdir,
		LogLevel:        DefaultLogLevel,
		Fetch: FetchConfig{
			URL:         "",
			Headers:     map[string]string{"token": ""},
			Format:      "json",
			Timeout:     DefaultFetchTimeout,
			HorizonDays: DefaultHorizonDays,
		},
		Commands: []string{},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave. Threshold is never defaulted.
func (c *Config) Normalize() {
	if c.IntervalMins == 0 {
		c.IntervalMins = DefaultIntervalMins
	}
	if c.FetchOccurrence == 0 {
		c.FetchOccurrence = DefaultFetchOccurrence
	}
	if c.Workdir == "" {
		c.Workdir = DefaultWorkdir
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Fetch.Format == "" {
		c.Fetch.Format = "json"
	}
	if c.Fetch.Timeout == "" {
		c.Fetch.Timeout = DefaultFetchTimeout
	}
	if c.Fetch.HorizonDays == 0 {
		c.Fetch.HorizonDays = DefaultHorizonDays
	}
	if c.Commands == nil {
		c.Commands = []string{}
	}
}

// Validate checks a normalized config for structural correctness.
func (c *Config) Validate() error {
	if c.Threshold == nil {
		return ErrNoThreshold
	}
	if c.IntervalMins < 0 {
		return fmt.Errorf("interval_mins must be positive, got %d", c.IntervalMins)
	}
	if c.FetchOccurrence < 0 {
		return fmt.Errorf("fetch_occurrence must be positive, got %d", c.FetchOccurrence)
	}
	switch strings.ToLower(c.Fetch.Format) {
	case "", "json", "ics":
	default:
		return fmt.Errorf("fetch.format: unknown format %q", c.Fetch.Format)
	}
	if _, err := c.FetchTimeout(); err != nil {
		return err
	}
	if _, err := c.CommandTimeoutDuration(); err != nil {
		return err
	}
	if c.Fetch.HorizonDays < 0 {
		return fmt.Errorf("fetch.horizon_days must be positive, got %d", c.Fetch.HorizonDays)
	}
	return nil
}

// ThresholdMinutes returns the configured threshold. Validate guarantees it is set.
func (c *Config) ThresholdMinutes() int {
	if c.Threshold == nil {
		return 0
	}
	return *c.Threshold
}

// Interval returns the tick period.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMins) * time.Minute
}

// FetchTimeout parses fetch.timeout.
func (c *Config) FetchTimeout() (time.Duration, error) {
	if c.Fetch.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Fetch.Timeout)
	if err != nil {
		return 0, fmt.Errorf("fetch.timeout: invalid duration %q: %w", c.Fetch.Timeout, err)
	}
	return d, nil
}

// CommandTimeoutDuration parses command_timeout. Zero means unbounded.
func (c *Config) CommandTimeoutDuration() (time.Duration, error) {
	if c.CommandTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CommandTimeout)
	if err != nil {
		return 0, fmt.Errorf("command_timeout: invalid duration %q: %w", c.CommandTimeout, err)
	}
	return d, nil
}

// LockPath returns the lock file path for a config loaded from configPath.
func (c *Config) LockPath(configPath string) string {
	if c.LockFile != "" {
		return c.LockFile
	}
	return configPath + ".lock"
}

// isTOML reports whether path should be read and written as TOML.
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Decode unmarshals data in the format implied by path, then normalizes and
// validates the result.
func Decode(path string, data []byte) (*Config, error) {
	var cfg Config
	if isTOML(path) {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return &cfg, nil
}

// Encode marshals cfg in the format implied by path.
func Encode(path string, cfg *Config) ([]byte, error) {
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(cfg)
}

// Load reads the configuration at path. Unlike first-run tools, a missing
// file is an error: the operator has to run init explicitly.
func Load(fsys afero.Fs, path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config %s not found (run init to create one): %w", path, err)
		}
		return nil, err
	}
	return Decode(path, data)
}

// Init writes the default configuration to path. It refuses to overwrite an
// existing file and returns ErrExists instead.
func Init(fsys afero.Fs, path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%s: %w", path, ErrExists)
	}
	cfg := DefaultConfig()
	if err := Save(fsys, path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(fsys afero.Fs, path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := Encode(path, cfg)
	if err != nil {
		return err
	}

	tmp, err := afero.TempFile(fsys, dir, ".shedcmd-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer fsys.Remove(tmpName) //nolint:errcheck // best-effort cleanup

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := fsys.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return fsys.Rename(tmpName, path)
}

// Package dispatch runs the configured shell commands when an event is close.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	appLog "shedcmd/internal/log"
)

// DefaultShell interprets each command string.
const DefaultShell = "sh"

// maxLoggedOutput caps how much command output ends up in a log line.
const maxLoggedOutput = 2048

// Result records one command invocation.
type Result struct {
	Index    int           `json:"index"`
	Command  string        `json:"command"`
	ExitCode int           `json:"exit_code"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// OK reports whether the command ran and exited zero.
func (r Result) OK() bool {
	return r.Err == nil
}

// Shell runs commands through "<Shell> -c <command>".
type Shell struct {
	// Shell is the interpreter; empty means DefaultShell.
	Shell string
	// Timeout bounds each command. Zero means no bound.
	Timeout time.Duration
	// Dir is the working directory. Empty means the current one.
	Dir string
	// Env is appended to the process environment for every command.
	Env []string
}

// Dispatch runs commands one at a time in the given order, waiting for each
// to finish. A failing command never stops the ones after it. Cancelling ctx
// does not interrupt the batch: once started, it drains.
func (s *Shell) Dispatch(ctx context.Context, commands []string, env []string) []Result {
	ctx = context.WithoutCancel(ctx)
	results := make([]Result, 0, len(commands))
	for i, command := range commands {
		appLog.Info("dispatching command", "index", i, "command", command)
		r := s.run(ctx, i, command, env)
		if r.Err != nil {
			appLog.Error("command failed", r.Err, "index", i, "command", command,
				"exit_code", r.ExitCode, "duration", r.Duration.Round(time.Millisecond),
				"output", TruncateOutput(r.Output, maxLoggedOutput))
		} else {
			appLog.Info("command finished", "index", i, "command", command,
				"duration", r.Duration.Round(time.Millisecond))
			if r.Output != "" {
				appLog.Debug("command output", "index", i, "output", TruncateOutput(r.Output, maxLoggedOutput))
			}
		}
		results = append(results, r)
	}
	return results
}

func (s *Shell) run(ctx context.Context, index int, command string, env []string) Result {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	shell := s.Shell
	if shell == "" {
		shell = DefaultShell
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.WaitDelay = 2 * time.Second
	cmd.Dir = s.Dir
	if len(s.Env) > 0 || len(env) > 0 {
		cmd.Env = append(append(os.Environ(), s.Env...), env...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	r := Result{
		Index:    index,
		Command:  command,
		Output:   strings.TrimRight(out.String(), "\n"),
		Duration: time.Since(start),
	}
	if err == nil {
		return r
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, exec.ErrWaitDelay):
		// The shell exited cleanly but a background child still holds the
		// output pipe. Only the output is incomplete.
		r.ExitCode = cmd.ProcessState.ExitCode()
		appLog.Debug("command left output open after exit", "index", index, "command", command)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.ExitCode = -1
		r.Err = fmt.Errorf("command timed out after %s", s.Timeout)
	case errors.As(err, &exitErr):
		r.ExitCode = exitErr.ExitCode()
		r.Err = fmt.Errorf("command exited with status %d", r.ExitCode)
	default:
		r.ExitCode = -1
		r.Err = fmt.Errorf("starting command: %w", err)
	}
	return r
}

// Failed counts the results that did not succeed.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// TruncateOutput trims s to limit bytes without splitting a rune.
func TruncateOutput(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	truncated := s[:limit]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + "…"
}

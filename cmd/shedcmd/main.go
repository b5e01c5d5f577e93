// shedcmd polls a load-shedding schedule and runs local commands shortly
// before the next outage.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	appLog "shedcmd/internal/log"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit is returned by RunE functions that have already reported the
// problem to stderr.
var errExit = errors.New("exit")

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// osFs is the filesystem every command reads and writes through.
var osFs afero.Fs = afero.NewOsFs()

// rootFlags are shared by the root command and its subcommands.
type rootFlags struct {
	configPath string
	filePath   string
	delay      int
	init       bool
}

// run executes the CLI with the given args, writing output to stdout and
// errors to stderr. Returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	appLog.SetOutput(stderr)
	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}
	if !errors.Is(err, errExit) {
		fmt.Fprintf(stderr, "shedcmd: %v\n", err) //nolint:errcheck // best-effort stderr
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// newRootCmd creates the root cobra command with all subcommands.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "shedcmd",
		Short: "Run commands ahead of scheduled load-shedding events",
		Long: `shedcmd fetches a schedule of events, finds the soonest upcoming one and
runs the configured shell commands once it is closer than the threshold.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if flags.init {
				return doInit(flags.configPath, stdout, stderr)
			}
			return runScheduler(flags, stdout, stderr)
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "config.yaml",
		"path to the configuration file (.yaml or .toml)")
	root.PersistentFlags().StringVarP(&flags.filePath, "file", "f", "",
		"read the schedule from this file instead of fetching it")
	root.Flags().IntVarP(&flags.delay, "delay", "d", 0,
		"seconds to wait before the first tick")
	root.Flags().BoolVarP(&flags.init, "init", "i", false,
		"write a default configuration file and exit")
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		newInitCmd(flags, stdout, stderr),
		newCheckCmd(flags, stdout, stderr),
		newEventsCmd(flags, stdout, stderr),
		newSchemaCmd(stdout),
		newVersionCmd(stdout),
	)
	return root
}

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"shedcmd/internal/config"
)

func newInitCmd(flags *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a default configuration file to --config. The threshold defaults to
15 minutes; fill in fetch.url (or fetch.response) and commands before running.
An existing file is never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return doInit(flags.configPath, stdout, stderr)
		},
	}
}

func doInit(path string, stdout, stderr io.Writer) error {
	if _, err := config.Init(osFs, path); err != nil {
		if errors.Is(err, config.ErrExists) {
			fmt.Fprintf(stderr, "shedcmd init: %s already exists; refusing to overwrite\n", path) //nolint:errcheck // best-effort stderr
			return errExit
		}
		return fmt.Errorf("init: %w", err)
	}
	fmt.Fprintf(stdout, "Wrote default configuration to %s\n", path) //nolint:errcheck // best-effort stdout
	return nil
}

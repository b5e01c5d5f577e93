package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"shedcmd/internal/dispatch"
	"shedcmd/internal/engine"
	"shedcmd/internal/fault"
	"shedcmd/internal/model"
	"shedcmd/internal/schedule"
	"shedcmd/internal/scheduler"
)

// dryRun stands in for the shell when check runs without --dispatch.
type dryRun struct {
	w io.Writer
}

func (d dryRun) Dispatch(_ context.Context, commands []string, _ []string) []dispatch.Result {
	for _, c := range commands {
		fmt.Fprintf(d.w, "would run: %s\n", c) //nolint:errcheck // best-effort stdout
	}
	return nil
}

func newCheckCmd(flags *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	var doDispatch bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single fetch and evaluation, then exit",
		Long: `Fetch the schedule once, evaluate the next event against the threshold
and print the outcome. Commands are only run with --dispatch.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return doCheck(flags, doDispatch, stdout, stderr)
		},
	}
	cmd.Flags().BoolVar(&doDispatch, "dispatch", false, "run the commands if the threshold is crossed")
	return cmd
}

func doCheck(flags *rootFlags, doDispatch bool, stdout, _ io.Writer) error {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}
	src, err := newSource(cfg, flags.filePath)
	if err != nil {
		return err
	}
	opts, err := loopOptions(cfg)
	if err != nil {
		return err
	}
	opts.FetchEvery = 1

	var disp scheduler.Dispatcher = dryRun{w: stdout}
	if doDispatch {
		shell, err := newDispatcher(cfg)
		if err != nil {
			return err
		}
		disp = shell
	}

	rep, err := scheduler.New(opts, src, disp, nil).Step(context.Background(), time.Now())
	if err != nil {
		if errors.Is(err, scheduler.ErrParse) {
			return withCode(2, err)
		}
		return withCode(1, err)
	}
	if rep.Skipped {
		return withCode(1, fault.Recoverablef("fetch failed: %s", rep.FetchErr))
	}

	printResult(stdout, rep.Result, cfg.ThresholdMinutes(), rep.Schedule.Len())
	for _, r := range rep.Dispatch {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Fprintf(stdout, "ran: %s (%s)\n", r.Command, status) //nolint:errcheck // best-effort stdout
	}
	return nil
}

func printResult(w io.Writer, res engine.Result, threshold, events int) {
	fmt.Fprintf(w, "events: %d\n", events) //nolint:errcheck // best-effort stdout
	if !res.Upcoming {
		fmt.Fprintln(w, "no upcoming event") //nolint:errcheck // best-effort stdout
		return
	}
	fmt.Fprintf(w, "next: %s at %s (in %d mins)\n", //nolint:errcheck // best-effort stdout
		res.Event.Note, res.Event.Start.Format(time.RFC3339), res.DeltaMinutes)
	if res.Triggered {
		fmt.Fprintf(w, "triggered: %d < %d\n", res.DeltaMinutes, threshold) //nolint:errcheck // best-effort stdout
	} else {
		fmt.Fprintf(w, "not triggered: %d >= %d\n", res.DeltaMinutes, threshold) //nolint:errcheck // best-effort stdout
	}
}

func newEventsCmd(flags *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Fetch the schedule once and print it as a table",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return doEvents(flags, stdout, stderr)
		},
	}
}

func doEvents(flags *rootFlags, stdout, _ io.Writer) error {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}
	src, err := newSource(cfg, flags.filePath)
	if err != nil {
		return err
	}
	opts, err := loopOptions(cfg)
	if err != nil {
		return err
	}

	body, err := src.Obtain(context.Background(), "")
	if err != nil {
		return withCode(1, err)
	}
	now := time.Now()
	sched, err := schedule.Parse(opts.Format, body, schedule.Options{Now: now, Horizon: opts.Horizon})
	if err != nil {
		return withCode(2, fmt.Errorf("%w: %w", scheduler.ErrParse, err))
	}

	renderEvents(stdout, sched.Sorted().Events, now)
	return nil
}

func renderEvents(w io.Writer, events []model.Event, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Start", "End", "Note", "In (mins)"})
	for i, ev := range events {
		end := "-"
		if ev.HasEnd() {
			end = ev.End.Format(time.RFC3339)
		}
		in := "past"
		if ev.Start.After(now) {
			in = fmt.Sprint(engine.Delta(ev.Start, now))
		}
		t.AppendRow(table.Row{i + 1, ev.Start.Format(time.RFC3339), end, ev.Note, in})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(events)})
	t.Render()
}

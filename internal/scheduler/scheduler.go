// Package scheduler drives the poll, evaluate and trigger cycle.
//
// Each tick either fetches a fresh payload (every FetchEvery ticks, starting
// with the first) or reuses the cached one, parses it, evaluates the soonest
// upcoming event and dispatches the configured commands when it is within
// the threshold. Ticks run strictly one after another.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"shedcmd/internal/dispatch"
	"shedcmd/internal/engine"
	"shedcmd/internal/fault"
	appLog "shedcmd/internal/log"
	"shedcmd/internal/model"
	"shedcmd/internal/schedule"
	"shedcmd/internal/source"
	"shedcmd/internal/telemetry"
)

// Tick outcomes, as reported to telemetry.
const (
	OutcomeEvaluated = "evaluated"
	OutcomeSkipped   = "skipped"
	OutcomeFatal     = "fatal"
)

// ErrParse marks a tick that failed because the cached payload could not be
// decoded. It is always wrapped in a fatal fault.
var ErrParse = errors.New("parsing schedule")

// Dispatcher runs a triggered batch of commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, commands []string, env []string) []dispatch.Result
}

// Reporter receives a copy of every tick report.
type Reporter interface {
	Publish(Report)
}

// Options configures a Loop.
type Options struct {
	// Interval is the tick period. Zero means one minute.
	Interval time.Duration
	// FetchEvery fetches on ticks where tick % FetchEvery == 0. Zero means 1.
	FetchEvery uint64
	// Threshold is the trigger window in whole minutes.
	Threshold int
	Commands  []string
	Format    schedule.Format
	// Horizon bounds recurrence expansion for iCalendar payloads.
	Horizon time.Duration
	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

// State is everything the loop carries from one tick to the next.
type State struct {
	// Tick counts ticks started, beginning at 0.
	Tick uint64
	// Cached is the last successfully obtained payload.
	Cached string
}

// Report describes one tick.
type Report struct {
	Tick    uint64    `json:"tick"`
	At      time.Time `json:"at"`
	Fetched bool      `json:"fetched"`
	// Skipped is set when a recoverable fetch failure abandoned the tick.
	Skipped  bool              `json:"skipped"`
	FetchErr string            `json:"fetch_error,omitempty"`
	Schedule model.Schedule    `json:"-"`
	Result   engine.Result     `json:"-"`
	BatchID  string            `json:"batch_id,omitempty"`
	Dispatch []dispatch.Result `json:"dispatch,omitempty"`
}

// Loop owns the scheduler state.
type Loop struct {
	opts     Options
	src      source.Source
	disp     Dispatcher
	reporter Reporter
	state    State
}

// New creates a Loop whose cache starts as the empty payload for opts.Format.
// reporter may be nil.
func New(opts Options, src source.Source, disp Dispatcher, reporter Reporter) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.FetchEvery == 0 {
		opts.FetchEvery = 1
	}
	if opts.Format == "" {
		opts.Format = schedule.FormatJSON
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loop{
		opts:     opts,
		src:      src,
		disp:     disp,
		reporter: reporter,
		state:    State{Cached: schedule.EmptyPayload(opts.Format)},
	}
}

// State returns a copy of the current loop state.
func (l *Loop) State() State {
	return l.state
}

// Run executes the first tick immediately and then one tick per Interval
// until ctx is cancelled or a tick fails fatally. Cancellation is observed
// between ticks only, so a dispatch in progress always completes. Run returns
// nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	appLog.Info("scheduler started", "interval", l.opts.Interval, "fetch_every", l.opts.FetchEvery,
		"threshold", l.opts.Threshold, "source", l.src.Describe())

	for {
		if ctx.Err() != nil {
			appLog.Info("scheduler stopped", "tick", l.state.Tick)
			return nil
		}
		if _, err := l.Step(ctx, l.opts.Now()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			appLog.Info("scheduler stopped", "tick", l.state.Tick)
			return nil
		case <-ticker.C:
		}
	}
}

// Step runs a single tick at now. The returned error is always fatal; a
// recoverable fetch failure is reported through Report.Skipped instead.
func (l *Loop) Step(ctx context.Context, now time.Time) (Report, error) {
	tick := l.state.Tick
	l.state.Tick++

	rep := Report{Tick: tick, At: now}
	kind := l.src.Kind().String()

	if tick%l.opts.FetchEvery == 0 {
		body, err := l.src.Obtain(ctx, l.state.Cached)
		telemetry.RecordFetch(ctx, kind, err)
		if err != nil {
			if fault.IsFatal(err) {
				appLog.Error("schedule fetch failed", err, "tick", tick, "source", kind)
				telemetry.RecordTick(ctx, tick, OutcomeFatal)
				return rep, err
			}
			appLog.Error("schedule fetch failed; skipping tick", err, "tick", tick, "source", kind)
			rep.Skipped = true
			rep.FetchErr = err.Error()
			telemetry.RecordTick(ctx, tick, OutcomeSkipped)
			l.publish(rep)
			return rep, nil
		}
		l.state.Cached = body
		rep.Fetched = true
	} else {
		appLog.Debug("using cached schedule", "tick", tick)
	}

	sched, err := schedule.Parse(l.opts.Format, l.state.Cached, schedule.Options{Now: now, Horizon: l.opts.Horizon})
	if err != nil {
		appLog.Error("schedule parse failed", err, "tick", tick)
		telemetry.RecordTick(ctx, tick, OutcomeFatal)
		return rep, fault.Fatal(fmt.Errorf("%w: %w", ErrParse, err))
	}
	rep.Schedule = sched.Sorted()

	res := engine.Evaluate(sched, now, l.opts.Threshold, l.opts.Commands)
	rep.Result = res
	telemetry.RecordEvaluation(ctx, sched.Len(), res.Upcoming, res.Event.Note, res.DeltaMinutes, res.Triggered)

	if !res.Upcoming {
		appLog.Info("no upcoming event", "tick", tick, "events", sched.Len())
		telemetry.RecordTick(ctx, tick, OutcomeEvaluated)
		l.publish(rep)
		return rep, nil
	}

	appLog.Info(fmt.Sprintf("%s in %d mins", res.Event.Note, res.DeltaMinutes), "tick", tick)
	if res.Anomaly {
		appLog.Error("next event delta is negative", fmt.Errorf("delta %d mins", res.DeltaMinutes),
			"tick", tick, "start", res.Event.Start.Format(time.RFC3339))
	}

	if res.Triggered {
		rep.BatchID = uuid.NewString()
		appLog.Info("threshold crossed; dispatching commands", "tick", tick, "batch", rep.BatchID,
			"threshold", l.opts.Threshold, "commands", len(res.Commands))
		rep.Dispatch = l.disp.Dispatch(ctx, res.Commands, EventEnv(res, rep.BatchID))
		for _, r := range rep.Dispatch {
			telemetry.RecordCommand(ctx, rep.BatchID, r.Command, r.ExitCode, r.Duration, r.Output, r.Err)
		}
		appLog.Info("dispatch finished", "tick", tick, "batch", rep.BatchID, "failed", dispatch.Failed(rep.Dispatch))
	}

	telemetry.RecordTick(ctx, tick, OutcomeEvaluated)
	l.publish(rep)
	return rep, nil
}

func (l *Loop) publish(rep Report) {
	if l.reporter != nil {
		l.reporter.Publish(rep)
	}
}

// EventEnv returns the environment describing the triggering event.
func EventEnv(res engine.Result, batchID string) []string {
	end := ""
	if res.Event.HasEnd() {
		end = res.Event.End.Format(time.RFC3339)
	}
	return []string{
		"SHEDCMD_EVENT_NOTE=" + res.Event.Note,
		"SHEDCMD_EVENT_START=" + res.Event.Start.Format(time.RFC3339),
		"SHEDCMD_EVENT_END=" + end,
		"SHEDCMD_DELTA_MINUTES=" + strconv.FormatInt(res.DeltaMinutes, 10),
		"SHEDCMD_BATCH_ID=" + batchID,
	}
}

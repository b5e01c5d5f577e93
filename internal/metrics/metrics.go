package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TicksTotal counts scheduler ticks by outcome (evaluated, skipped, fatal).
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shedcmd_ticks_total",
			Help: "Total number of scheduler ticks by outcome",
		},
		[]string{"outcome"},
	)

	// FetchesTotal counts schedule fetch attempts by source kind and status (ok, error).
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shedcmd_fetches_total",
			Help: "Total number of schedule fetch attempts",
		},
		[]string{"source", "status"},
	)

	// ScheduleEvents is the number of events in the last parsed schedule.
	ScheduleEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shedcmd_schedule_events",
			Help: "Number of events in the last parsed schedule",
		},
	)

	// NextEventMinutes is the delta to the next event, or -1 when there is none.
	NextEventMinutes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shedcmd_next_event_minutes",
			Help: "Whole minutes until the next event, -1 when none is upcoming",
		},
	)

	// TriggersTotal counts threshold crossings.
	TriggersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shedcmd_triggers_total",
			Help: "Total number of evaluations that crossed the threshold",
		},
	)

	// CommandsTotal counts dispatched commands by exit code.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shedcmd_commands_total",
			Help: "Total number of dispatched commands by exit code",
		},
		[]string{"exit_code"},
	)

	// CommandDuration tracks command run time in seconds.
	CommandDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shedcmd_command_duration_seconds",
			Help:    "Dispatched command duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var initOnce sync.Once

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(TicksTotal, FetchesTotal, ScheduleEvents, NextEventMinutes,
			TriggersTotal, CommandsTotal, CommandDuration)
	})
}

// RecordTick counts one tick with the given outcome.
func RecordTick(outcome string) {
	TicksTotal.WithLabelValues(outcome).Inc()
}

// RecordFetch counts one fetch attempt.
func RecordFetch(source string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	FetchesTotal.WithLabelValues(source, status).Inc()
}

// RecordEvaluation updates the schedule gauges. delta is ignored when
// upcoming is false.
func RecordEvaluation(events int, upcoming bool, delta int64, triggered bool) {
	ScheduleEvents.Set(float64(events))
	if upcoming {
		NextEventMinutes.Set(float64(delta))
	} else {
		NextEventMinutes.Set(-1)
	}
	if triggered {
		TriggersTotal.Inc()
	}
}

// RecordCommand records one dispatched command.
func RecordCommand(exitCode int, d time.Duration) {
	CommandsTotal.WithLabelValues(strconv.Itoa(exitCode)).Inc()
	CommandDuration.Observe(d.Seconds())
}

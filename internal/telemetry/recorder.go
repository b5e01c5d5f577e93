package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"

	"shedcmd/internal/dispatch"
	"shedcmd/internal/metrics"
)

const (
	meterRecorderName = "shedcmd"
	loggerName        = "shedcmd"

	// maxOutputLog is the maximum number of bytes of command output in a log record.
	maxOutputLog = 2048
)

type recorderInstruments struct {
	tickTotal     metric.Int64Counter
	fetchTotal    metric.Int64Counter
	triggerTotal  metric.Int64Counter
	commandTotal  metric.Int64Counter
	commandMsHist metric.Float64Histogram
}

var (
	instOnce sync.Once
	inst     recorderInstruments
)

// initInstruments binds the recorder instruments to the current global
// MeterProvider. Called from Init, and lazily on first use.
func initInstruments() {
	instOnce.Do(func() {
		m := otel.GetMeterProvider().Meter(meterRecorderName)

		inst.tickTotal, _ = m.Int64Counter("shedcmd.ticks.total",
			metric.WithDescription("Total scheduler ticks"),
		)
		inst.fetchTotal, _ = m.Int64Counter("shedcmd.fetches.total",
			metric.WithDescription("Total schedule fetch attempts"),
		)
		inst.triggerTotal, _ = m.Int64Counter("shedcmd.triggers.total",
			metric.WithDescription("Total threshold crossings"),
		)
		inst.commandTotal, _ = m.Int64Counter("shedcmd.commands.total",
			metric.WithDescription("Total dispatched commands"),
		)
		inst.commandMsHist, _ = m.Float64Histogram("shedcmd.command.duration_ms",
			metric.WithDescription("Dispatched command duration in milliseconds"),
			metric.WithUnit("ms"),
		)
	})
}

// statusStr returns "ok" or "error" depending on whether err is nil.
func statusStr(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func emit(ctx context.Context, body string, sev otellog.Severity, attrs ...otellog.KeyValue) {
	logger := global.GetLoggerProvider().Logger(loggerName)
	var r otellog.Record
	r.SetTimestamp(time.Now())
	r.SetBody(otellog.StringValue(body))
	r.SetSeverity(sev)
	r.AddAttributes(attrs...)
	logger.Emit(ctx, r)
}

func errKV(err error) otellog.KeyValue {
	if err != nil {
		return otellog.String("error", err.Error())
	}
	return otellog.String("error", "")
}

func severity(err error) otellog.Severity {
	if err != nil {
		return otellog.SeverityError
	}
	return otellog.SeverityInfo
}

// RecordTick records one scheduler tick. outcome is evaluated, skipped or fatal.
func RecordTick(ctx context.Context, tick uint64, outcome string) {
	initInstruments()
	metrics.RecordTick(outcome)
	inst.tickTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
	emit(ctx, "scheduler.tick", otellog.SeverityDebug,
		otellog.Int64("tick", int64(tick)),
		otellog.String("outcome", outcome),
	)
}

// RecordFetch records one schedule fetch attempt.
func RecordFetch(ctx context.Context, source string, err error) {
	initInstruments()
	metrics.RecordFetch(source, err == nil)
	status := statusStr(err)
	inst.fetchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	))
	emit(ctx, "schedule.fetch", severity(err),
		otellog.String("source", source),
		otellog.String("status", status),
		errKV(err),
	)
}

// RecordEvaluation records the result of one evaluation.
func RecordEvaluation(ctx context.Context, events int, upcoming bool, note string, delta int64, triggered bool) {
	initInstruments()
	metrics.RecordEvaluation(events, upcoming, delta, triggered)
	if !triggered {
		return
	}
	inst.triggerTotal.Add(ctx, 1)
	emit(ctx, "schedule.trigger", otellog.SeverityWarn,
		otellog.String("note", note),
		otellog.Int64("delta_minutes", delta),
	)
}

// RecordCommand records one dispatched command.
func RecordCommand(ctx context.Context, batchID, command string, exitCode int, d time.Duration, output string, err error) {
	initInstruments()
	metrics.RecordCommand(exitCode, d)
	status := statusStr(err)
	inst.commandTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
	inst.commandMsHist.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		attribute.String("status", status),
	))
	emit(ctx, "command.dispatch", severity(err),
		otellog.String("batch_id", batchID),
		otellog.String("command", command),
		otellog.Int("exit_code", exitCode),
		otellog.Float64("duration_ms", float64(d.Milliseconds())),
		otellog.String("status", status),
		errKV(err),
		otellog.String("output", dispatch.TruncateOutput(output, maxOutputLog)),
	)
}

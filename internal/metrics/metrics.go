package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/wtcops/resyncd/internal/appconf"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const instrumentationName = "github.com/wtcops/resyncd"

// Setup installs the global meter provider. When metrics are disabled,
// the default no-op provider stays in place.
//
// The returned function flushes and stops the exporter.
func Setup(conf *appconf.MetricsParams) (func(context.Context) error, error) {
	if conf == nil || !conf.Enable {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(time.Duration(conf.Interval)*time.Second)),
		),
	)

	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

// Recorder holds the task instruments. A nil Recorder records nothing.
type Recorder struct {
	tasksCreated  metric.Int64Counter
	tasksFinished metric.Int64Counter
	commands      metric.Int64Counter
	duration      metric.Float64Histogram
}

func NewRecorder() (*Recorder, error) {
	meter := otel.Meter(instrumentationName)

	var r Recorder
	var errs [4]error

	r.tasksCreated, errs[0] = meter.Int64Counter(
		"resyncd.tasks.created",
		metric.WithDescription("Number of submitted tasks"),
		metric.WithUnit("{task}"),
	)

	r.tasksFinished, errs[1] = meter.Int64Counter(
		"resyncd.tasks.finished",
		metric.WithDescription("Number of tasks that reached a terminal state"),
		metric.WithUnit("{task}"),
	)

	r.commands, errs[2] = meter.Int64Counter(
		"resyncd.commands.executed",
		metric.WithDescription("Number of executed external commands"),
		metric.WithUnit("{command}"),
	)

	r.duration, errs[3] = meter.Float64Histogram(
		"resyncd.tasks.duration",
		metric.WithDescription("Duration of tasks from start to a terminal state"),
		metric.WithUnit("s"),
	)

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}

	return &r, nil
}

func (r *Recorder) TaskCreated(ctx context.Context, kind string) {
	if r == nil {
		return
	}

	r.tasksCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("type", kind)))
}

func (r *Recorder) TaskFinished(ctx context.Context, kind, status string, d time.Duration) {
	if r == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("type", kind), attribute.String("status", status))

	r.tasksFinished.Add(ctx, 1, attrs)
	r.duration.Record(ctx, d.Seconds(), attrs)
}

func (r *Recorder) CommandExecuted(ctx context.Context, success bool) {
	if r == nil {
		return
	}

	r.commands.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

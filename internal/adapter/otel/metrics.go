package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "freshet"

// Metrics holds all metric instruments for the script execution engine.
type Metrics struct {
	RunsStarted   metric.Int64Counter
	RunsCompleted metric.Int64Counter
	RunsFailed    metric.Int64Counter
	RunsPreempted metric.Int64Counter
	RunDuration   metric.Float64Histogram
	MsgsEnqueued  metric.Int64Counter

	registration metric.Registration
}

// NewMetrics creates all metric instruments. sessionCount feeds the active
// session gauge; it is polled at collection time.
func NewMetrics(sessionCount func() int64) (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("freshet.runs.started",
		metric.WithDescription("Number of script runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("freshet.runs.completed",
		metric.WithDescription("Number of script runs finished successfully"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("freshet.runs.failed",
		metric.WithDescription("Number of script runs that failed"))
	if err != nil {
		return nil, err
	}

	m.RunsPreempted, err = meter.Int64Counter("freshet.runs.preempted",
		metric.WithDescription("Number of script runs interrupted for a rerun"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("freshet.run.duration_seconds",
		metric.WithDescription("Script run duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.MsgsEnqueued, err = meter.Int64Counter("freshet.forward_msgs.enqueued",
		metric.WithDescription("Number of forward messages enqueued"))
	if err != nil {
		return nil, err
	}

	sessions, err := meter.Int64ObservableGauge("freshet.sessions.active",
		metric.WithDescription("Number of live sessions"))
	if err != nil {
		return nil, err
	}
	m.registration, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(sessions, sessionCount())
			return nil
		}, sessions)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Close unregisters the session gauge callback.
func (m *Metrics) Close() error {
	if m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}

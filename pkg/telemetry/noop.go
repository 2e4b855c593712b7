package telemetry

import (
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

var noopMeter = metricnoop.NewMeterProvider().Meter(InstrumentationName)

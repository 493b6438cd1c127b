package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Counter creates an Int64Counter on the global meter for scope.
// Instrument creation failures fall back to a no-op counter.
func Counter(scope, name, description string) metric.Int64Counter {
	c, err := otel.Meter(scope).Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

// Histogram creates a Float64Histogram on the global meter for scope.
func Histogram(scope, name, description, unit string) metric.Float64Histogram {
	h, err := otel.Meter(scope).Float64Histogram(name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return noop.Float64Histogram{}
	}
	return h
}

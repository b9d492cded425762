// Package tracing adapts the opentracing.org API for the resolver's
// per-tick span instrumentation. Unlike a request-scoped RPC handler, a DNS
// poll has no incoming context to carry a parent span, so spans here are
// always roots unless a caller-supplied Tracer decides otherwise.
package tracing

import opentracing "github.com/opentracing/opentracing-go"

// Tracer is the subset of opentracing.Tracer the resolver depends on.
type Tracer interface {
	StartSpan(operationName string, opts ...opentracing.StartSpanOption) opentracing.Span
}

// NoopTracer returns a Tracer that produces spans which do nothing.
func NoopTracer() Tracer {
	return opentracing.NoopTracer{}
}

// StartSpan starts a span named operationName on t, or on the global
// tracer if t is nil.
func StartSpan(t Tracer, operationName string, opts ...opentracing.StartSpanOption) opentracing.Span {
	if t == nil {
		t = opentracing.GlobalTracer()
	}
	return t.StartSpan(operationName, opts...)
}

// Copyright 2026, Square, Inc.

package app

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter is a span exporter that logs one debug line per span.
type LogExporter struct{}

var _ sdktrace.SpanExporter = LogExporter{}

func (LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return nil
	}
	for _, s := range spans {
		fields := log.Fields{
			"traceId":  s.SpanContext().TraceID().String(),
			"duration": s.EndTime().Sub(s.StartTime()).String(),
		}
		for _, kv := range s.Attributes() {
			fields[string(kv.Key)] = kv.Value.Emit()
		}
		if s.Status().Code == codes.Error {
			fields["error"] = s.Status().Description
		}
		log.WithFields(fields).Debug(s.Name())
	}
	return nil
}

func (LogExporter) Shutdown(ctx context.Context) error {
	return nil
}

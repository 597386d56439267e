package provisioning

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

// ErrorReporter receives failures that are swallowed or reclassified so they
// can still be investigated.
type ErrorReporter interface {
	Report(ctx context.Context, err error, fields map[string]any)
}

type spanReporter struct {
	log *logger.Logger
}

// NewErrorReporter logs the error and records it on the active span.
func NewErrorReporter(baseLog *logger.Logger) ErrorReporter {
	return &spanReporter{log: baseLog.With("component", "ErrorReporter")}
}

func (r *spanReporter) Report(ctx context.Context, err error, fields map[string]any) {
	if err == nil {
		return
	}
	kv := make([]interface{}, 0, len(fields)*2+2)
	attrs := make([]attribute.KeyValue, 0, len(fields))
	for k, v := range fields {
		kv = append(kv, k, v)
		attrs = append(attrs, attribute.String(k, fmt.Sprint(v)))
	}
	r.log.Error("Provisioning error reported", append(kv, "error", err)...)

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

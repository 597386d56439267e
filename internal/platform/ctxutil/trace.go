package ctxutil

import "context"

type traceDataKey struct{}

// TraceData travels from the HTTP edge into queued work so log lines on the
// worker side can be joined with the originating request.
type TraceData struct {
	TraceID    string
	RequestID  string
	AttemptKey string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// LogFields flattens trace data into logger key/value pairs.
func LogFields(ctx context.Context) []interface{} {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	out := make([]interface{}, 0, 6)
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		out = append(out, "request_id", td.RequestID)
	}
	if td.AttemptKey != "" {
		out = append(out, "attempt_key", td.AttemptKey)
	}
	return out
}

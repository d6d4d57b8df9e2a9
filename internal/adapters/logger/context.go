package logger

import "context"

type ctxKey struct{}

// WithRequestID returns a context whose log lines carry requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestID extracts the request ID stored by WithRequestID.
func RequestID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// mergeFields flattens the variadic field maps and adds context values.
// Later maps win on key collisions.
func mergeFields(ctx context.Context, fields []map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{})
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	if id, ok := RequestID(ctx); ok {
		merged["requestID"] = id
	}
	return merged
}

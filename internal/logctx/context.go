package logctx

import "context"

type ctxKey string

const keyRID ctxKey = "mm_rid"

// WithRID stores the request id used to correlate log lines.
func WithRID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, keyRID, rid)
}

// RID returns the request id, or "-" when none is set.
func RID(ctx context.Context) string {
	v, _ := ctx.Value(keyRID).(string)
	if v == "" {
		return "-"
	}
	return v
}

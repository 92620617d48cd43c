package batch

import "context"

type recordKey struct{}

func withRecord(ctx context.Context, rec *Record) context.Context {
	return context.WithValue(ctx, recordKey{}, rec)
}

// RecordFromContext returns the record whose invocation ctx belongs to.
// Tools use it to learn their tool id and execution id.
func RecordFromContext(ctx context.Context) (*Record, bool) {
	rec, ok := ctx.Value(recordKey{}).(*Record)
	return rec, ok && rec != nil
}

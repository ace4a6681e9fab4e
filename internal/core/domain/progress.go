package domain

import "context"

type progressContextKey struct{}

// ProgressFunc observes coarse pipeline stage transitions. The async job
// worker attaches one to surface extracting/classifying status; the sync
// HTTP path runs without one.
type ProgressFunc func(status JobStatus)

func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressContextKey{}, fn)
}

// NotifyProgress invokes the context's progress observer, if any.
func NotifyProgress(ctx context.Context, status JobStatus) {
	if fn, ok := ctx.Value(progressContextKey{}).(ProgressFunc); ok && fn != nil {
		fn(status)
	}
}

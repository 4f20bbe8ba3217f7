package gateway

import "context"

type contextKey struct{}

// WithInterview tags a context with the interview the request belongs to,
// enabling per-interview BYOK key resolution.
func WithInterview(ctx context.Context, interviewID string) context.Context {
	return context.WithValue(ctx, contextKey{}, interviewID)
}

// InterviewFromContext returns the interview ID set by WithInterview, or ""
// when the request is not bound to an interview.
func InterviewFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

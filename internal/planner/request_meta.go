package planner

import "context"

// RequestMeta travels with a planning request down to the HTTP transport so
// proxies in front of the model can correlate calls.
type RequestMeta struct {
	SourceFile string
	PageIndex  int
	SessionID  string
}

type requestMetaKey struct{}

// WithRequestMeta merges add into any meta already on ctx. Empty fields do not
// overwrite existing values; PageIndex is always set since page 0 is valid.
func WithRequestMeta(ctx context.Context, add RequestMeta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	cur, _ := RequestMetaFromContext(ctx)

	if add.SourceFile != "" {
		cur.SourceFile = add.SourceFile
	}
	if add.SessionID != "" {
		cur.SessionID = add.SessionID
	}
	cur.PageIndex = add.PageIndex

	return context.WithValue(ctx, requestMetaKey{}, cur)
}

// RequestMetaFromContext returns the meta on ctx and whether any was set.
func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	m, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m, ok
}

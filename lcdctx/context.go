// Package lcdctx carries per-invocation flags through a context.
package lcdctx

import "context"

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexShow
)

func flag(ctx context.Context, idx ctxIndex) bool {
	val, ok := ctx.Value(idx).(bool)
	return ok && val
}

// IsVerbose reports whether transports should dump the traffic they send.
func IsVerbose(ctx context.Context) bool {
	return flag(ctx, ctxIndexVerbose)
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// IsShow reports whether the panel contents should be printed after a
// command completes.
func IsShow(ctx context.Context) bool {
	return flag(ctx, ctxIndexShow)
}

func SetShow(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexShow, value)
}

// Package snsctx carries per-call preferences of bus adapters through context.
package snsctx

import (
	"context"
	"log/slog"
)

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexLogger
)

// IsVerbose reports whether bus traffic should be dumped.
func IsVerbose(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	val, _ := ctx.Value(ctxIndexVerbose).(bool)
	return val
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// Logger returns the logger stored in ctx or slog.Default.
func Logger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxIndexLogger).(*slog.Logger); ok {
			return logger
		}
	}
	return slog.Default()
}

func SetLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxIndexLogger, logger)
}

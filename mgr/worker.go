package mgr

import (
	"context"
	"log/slog"
)

// WorkerCtx provides workers with their context and logging.
type WorkerCtx struct {
	ctx    context.Context
	logger *slog.Logger
}

// Ctx returns the worker context.
func (w *WorkerCtx) Ctx() context.Context {
	return w.ctx
}

// Done returns the context Done channel.
func (w *WorkerCtx) Done() <-chan struct{} {
	return w.ctx.Done()
}

// IsDone checks whether the worker context is done.
func (w *WorkerCtx) IsDone() bool {
	return w.ctx.Err() != nil
}

// Debug logs at LevelDebug.
func (w *WorkerCtx) Debug(msg string, args ...any) {
	w.logger.Debug(msg, args...)
}

// Info logs at LevelInfo.
func (w *WorkerCtx) Info(msg string, args ...any) {
	w.logger.Info(msg, args...)
}

// Warn logs at LevelWarn.
func (w *WorkerCtx) Warn(msg string, args ...any) {
	w.logger.Warn(msg, args...)
}

// Error logs at LevelError.
func (w *WorkerCtx) Error(msg string, args ...any) {
	w.logger.Error(msg, args...)
}

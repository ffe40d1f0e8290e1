package mgr

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// workerRestartBackoff is the wait before a failed worker is started again.
const workerRestartBackoff = 100 * time.Millisecond

// Manager provides logging and lifecycle management for a component
// and the workers it runs.
type Manager struct {
	name   string
	logger *slog.Logger

	ctx       context.Context
	cancelCtx context.CancelFunc

	workerCnt   atomic.Int32
	workersIdle chan struct{}
}

// New returns a new manager with the given name.
func New(name string) *Manager {
	m := &Manager{
		name:        name,
		logger:      slog.Default().With("manager", name),
		workersIdle: make(chan struct{}, 1),
	}
	m.ctx, m.cancelCtx = context.WithCancel(context.Background())
	return m
}

// Name returns the manager name.
func (m *Manager) Name() string {
	return m.name
}

// Ctx returns the manager context.
func (m *Manager) Ctx() context.Context {
	return m.ctx
}

// Cancel cancels the manager context, signaling all workers to stop.
func (m *Manager) Cancel() {
	m.cancelCtx()
}

// Done returns the context Done channel.
func (m *Manager) Done() <-chan struct{} {
	return m.ctx.Done()
}

// IsDone checks whether the manager context is done.
func (m *Manager) IsDone() bool {
	return m.ctx.Err() != nil
}

// Go starts the given function as a managed worker.
// If the worker panics or returns an error, it is restarted
// after a short backoff until it returns nil or the manager
// is canceled.
func (m *Manager) Go(name string, fn func(w *WorkerCtx) error) {
	m.workerCnt.Add(1)
	go m.manageWorker(name, fn)
}

// StartWorker is an alias for Go.
func (m *Manager) StartWorker(name string, fn func(w *WorkerCtx) error) {
	m.Go(name, fn)
}

func (m *Manager) manageWorker(name string, fn func(w *WorkerCtx) error) {
	defer m.workerDone()

	w := &WorkerCtx{
		ctx:    m.ctx,
		logger: m.logger.With("worker", name),
	}

	for {
		err := m.runWorker(w, fn)
		switch {
		case err == nil:
			// Worker completed.
			return
		case m.IsDone():
			// Manager is shutting down, don't restart.
			return
		default:
			w.Error("worker failed, restarting", "err", err)
		}

		select {
		case <-time.After(workerRestartBackoff):
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) runWorker(w *WorkerCtx, fn func(w *WorkerCtx) error) (err error) {
	defer func() {
		if panicVal := recover(); panicVal != nil {
			err = fmt.Errorf("panic: %v", panicVal)
			w.Error(
				"worker panicked",
				"panic", panicVal,
				"stack", string(debug.Stack()),
			)
		}
	}()

	return fn(w)
}

// Do executes the given function synchronously as an attributed unit of work.
// Panics are recovered and returned as errors.
func (m *Manager) Do(name string, fn func(w *WorkerCtx) error) error {
	w := &WorkerCtx{
		ctx:    m.ctx,
		logger: m.logger.With("worker", name),
	}

	err := m.runWorker(w, fn)
	if err != nil {
		w.Error("worker failed", "err", err)
	}
	return err
}

func (m *Manager) workerDone() {
	if m.workerCnt.Add(-1) == 0 {
		select {
		case m.workersIdle <- struct{}{}:
		default:
		}
	}
}

// WaitForWorkers waits for all workers of this manager to finish,
// up to the given max duration. Returns whether all workers finished.
func (m *Manager) WaitForWorkers(max time.Duration) bool {
	if max <= 0 {
		max = 10 * time.Second
	}
	if m.workerCnt.Load() == 0 {
		return true
	}

	deadline := time.After(max)
	for {
		select {
		case <-m.workersIdle:
			if m.workerCnt.Load() == 0 {
				return true
			}
		case <-deadline:
			return m.workerCnt.Load() == 0
		}
	}
}

// WorkerCnt returns the current amount of running workers.
func (m *Manager) WorkerCnt() int32 {
	return m.workerCnt.Load()
}

// Debug logs at LevelDebug.
func (m *Manager) Debug(msg string, args ...any) {
	m.logger.Debug(msg, args...)
}

// Info logs at LevelInfo.
func (m *Manager) Info(msg string, args ...any) {
	m.logger.Info(msg, args...)
}

// Warn logs at LevelWarn.
func (m *Manager) Warn(msg string, args ...any) {
	m.logger.Warn(msg, args...)
}

// Error logs at LevelError.
func (m *Manager) Error(msg string, args ...any) {
	m.logger.Error(msg, args...)
}

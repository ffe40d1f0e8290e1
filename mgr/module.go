package mgr

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Module is a manage-able instance of some component.
type Module interface {
	Manager() *Manager
	Start() error
	Stop() error
}

// Group describes a group of modules that are started and stopped together.
type Group struct {
	modules []Module

	ctx       context.Context
	cancelCtx context.CancelFunc
	ctxLock   sync.Mutex
}

// NewGroup returns a new group of modules.
func NewGroup(modules ...Module) *Group {
	g := &Group{
		modules: make([]Module, 0, len(modules)),
	}
	g.initGroupContext()

	for _, m := range modules {
		// Skip nil values, also when given via a typed nil interface.
		if m == nil || reflect.ValueOf(m).IsNil() || m.Manager() == nil {
			continue
		}
		g.modules = append(g.modules, m)
	}

	return g
}

// Start starts all modules in the group in the defined order.
// If a module fails to start, itself and all previous modules
// are stopped in the reverse order.
func (g *Group) Start() error {
	g.initGroupContext()

	for i, m := range g.modules {
		if err := m.Start(); err != nil {
			g.stopFrom(i)
			return fmt.Errorf("failed to start %s: %w", m.Manager().Name(), err)
		}
		m.Manager().Info("started")
	}
	return nil
}

// Stop stops all modules in the group in the reverse order.
func (g *Group) Stop() (ok bool) {
	return g.stopFrom(len(g.modules) - 1)
}

func (g *Group) stopFrom(index int) (ok bool) {
	ok = true
	for i := index; i >= 0; i-- {
		m := g.modules[i]
		mgr := m.Manager()

		if err := m.Stop(); err != nil {
			mgr.Error("failed to stop", "err", err)
			ok = false
		}
		mgr.Cancel()
		if mgr.WaitForWorkers(0) {
			mgr.Info("stopped")
		} else {
			ok = false
			mgr.Error(
				"failed to stop",
				"err", "timed out",
				"workerCnt", mgr.WorkerCnt(),
			)
		}
	}

	g.stopGroupContext()
	return
}

func (g *Group) initGroupContext() {
	g.ctxLock.Lock()
	defer g.ctxLock.Unlock()

	g.ctx, g.cancelCtx = context.WithCancel(context.Background())
}

func (g *Group) stopGroupContext() {
	g.ctxLock.Lock()
	defer g.ctxLock.Unlock()

	g.cancelCtx()
}

// Done returns the group context Done channel.
func (g *Group) Done() <-chan struct{} {
	g.ctxLock.Lock()
	defer g.ctxLock.Unlock()

	return g.ctx.Done()
}

// IsDone checks whether the group context is done.
func (g *Group) IsDone() bool {
	g.ctxLock.Lock()
	defer g.ctxLock.Unlock()

	return g.ctx.Err() != nil
}

// RunModules is a simple wrapper function to start modules and stop them
// again when the given context is canceled.
func RunModules(ctx context.Context, modules ...Module) error {
	g := NewGroup(modules...)

	if err := g.Start(); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	<-ctx.Done()
	if !g.Stop() {
		return errors.New("failed to stop")
	}

	return nil
}

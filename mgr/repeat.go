package mgr

import "time"

// Repeat runs the given function at the given interval as a managed worker,
// until it returns an error or the manager is canceled.
func (m *Manager) Repeat(name string, interval time.Duration, fn func(w *WorkerCtx) error) {
	m.Go(name, func(w *WorkerCtx) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := fn(w); err != nil {
					return err
				}
			case <-w.Done():
				return nil
			}
		}
	})
}

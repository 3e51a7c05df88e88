// Package daemon supervises long-running background workers, restarting them
// when they crash. The notification fan-out worker runs under it.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Func is the work a daemon does. Returning nil means a clean exit; an error
// triggers a restart.
type Func func(ctx context.Context, name string) error

type Manager struct {
	logger  *slog.Logger
	daemons map[string]Func
	wg      sync.WaitGroup
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:  logger,
		daemons: make(map[string]Func),
	}
}

// Add registers a daemon by name.
func (m *Manager) Add(name string, fn Func) {
	m.daemons[name] = fn
}

// Start runs all daemons and restarts them if they crash.
func (m *Manager) Start(ctx context.Context) {
	for name, fn := range m.daemons {
		m.wg.Add(1)
		go m.run(ctx, name, fn)
	}
}

// Wait blocks until all daemons have stopped.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, name string, fn Func) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("daemon received shutdown signal", "daemon", name)
			return
		default:
			if err := fn(ctx, name); err != nil {
				m.logger.Error("daemon crashed, restarting in 2s", "daemon", name, "error", err)
				time.Sleep(2 * time.Second)
				continue
			}
			m.logger.Info("daemon exited cleanly", "daemon", name)
			return
		}
	}
}

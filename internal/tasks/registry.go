// Package tasks supervises background goroutines spawned by request
// handlers, so batch processing outlives the webhook request that
// triggered it but not the process shutdown.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// DefaultDrainTimeout bounds how long shutdown waits for in-flight tasks.
const DefaultDrainTimeout = 30 * time.Second

// Registry tracks spawned tasks. Tasks receive a context derived from
// the registry's base context and are expected to honor cancellation.
type Registry struct {
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewRegistry creates a Registry. Task contexts carry ctx's values but
// not its cancellation: the caller's ctx is typically the signal context,
// and a signal must start the drain, not kill in-flight batch runs. Only
// Drain cancels task contexts.
func NewRegistry(ctx context.Context, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Registry{base: base, cancel: cancel, logger: logger}
}

// Go runs fn on a supervised goroutine. A panic inside fn is recovered
// and logged rather than crashing the process. Returns false when the
// registry is already draining and the task was not started.
func (r *Registry) Go(name string, fn func(ctx context.Context)) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("task panicked",
					"task", name,
					"panic", rec,
					"stack", string(debug.Stack()))
			}
		}()
		fn(r.base)
	}()
	return true
}

// Drain stops accepting new tasks and waits up to timeout for running
// ones to finish. Running tasks keep their context alive during the
// grace period; it is cancelled only when the timeout expires.
func (r *Registry) Drain(timeout time.Duration) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		r.cancel()
		return nil
	case <-timer.C:
		r.cancel()
		return fmt.Errorf("tasks still running after %s", timeout)
	}
}

package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WaitState is the outcome of waiting out a batch's debounce window.
type WaitState int

const (
	// WaitReady: the deadline passed with the batch still pending.
	WaitReady WaitState = iota
	// WaitSuperseded: the batch left the pending state while waiting,
	// another worker got to it first.
	WaitSuperseded
	// WaitExhausted: the poll budget ran out before the deadline settled.
	// The batch is processed anyway; a perpetually extended deadline must
	// not starve the conversation forever.
	WaitExhausted
)

func (s WaitState) String() string {
	switch s {
	case WaitReady:
		return "ready"
	case WaitSuperseded:
		return "superseded"
	case WaitExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// scheduleStore reads a batch's moving deadline.
type scheduleStore interface {
	BatchSchedule(ctx context.Context, batchID uuid.UUID) (time.Time, string, error)
}

// Waiter polls a batch's deadline until it passes. Because every new
// message pushes the deadline out, the wait is re-read each iteration
// rather than slept in one piece.
type Waiter struct {
	store scheduleStore
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWaiter creates a Waiter with real clock and sleep.
func NewWaiter(s scheduleStore) *Waiter {
	return &Waiter{
		store: s,
		now:   time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// Wait blocks until the batch's debounce window closes, sleeping at most
// SchedulePollCap per poll and giving up after SchedulePollBudget polls.
func (w *Waiter) Wait(ctx context.Context, batchID uuid.UUID) (WaitState, error) {
	for range SchedulePollBudget {
		scheduledAt, status, err := w.store.BatchSchedule(ctx, batchID)
		if err != nil {
			return WaitReady, err
		}
		if status != "pending" {
			return WaitSuperseded, nil
		}
		remaining := scheduledAt.Sub(w.now())
		if remaining <= 0 {
			return WaitReady, nil
		}
		if err := w.sleep(ctx, min(remaining, SchedulePollCap)); err != nil {
			return WaitReady, err
		}
	}
	return WaitExhausted, nil
}

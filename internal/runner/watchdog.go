package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// watchState tracks escalation progress while a child runs under a deadline.
type watchState int

const (
	stateRunning watchState = iota
	stateInterruptSent
	stateKillSent
	stateExited
)

// watchdog enforces a wall-clock deadline on one child process group.
// The clock, poll cadence, and signal delivery are injectable so the
// escalation ladder is testable without real processes.
type watchdog struct {
	pid      int
	deadline time.Time
	signal   GroupSignaler
	now      func() time.Time
	sleep    func(time.Duration)
	interval time.Duration
	log      *zap.Logger
}

// watch polls exited until the child leaves on its own or the deadline
// forces the group down. It reports whether the deadline fired. Once the
// deadline is breached the outcome is the kill result, even when the
// interrupt alone was enough to stop the group.
func (w *watchdog) watch(ctx context.Context, exited func() bool) (bool, error) {
	state := stateRunning
	for {
		if err := ctx.Err(); err != nil {
			_ = w.signal.Kill(w.pid)
			return false, err
		}

		if state == stateRunning && exited() {
			state = stateExited
			return false, nil
		}

		if w.now().After(w.deadline) {
			switch state {
			case stateRunning:
				w.log.Debug("deadline exceeded, interrupting process group",
					zap.Int("pid", w.pid))
				if err := w.signal.Interrupt(w.pid); err != nil {
					return false, fmt.Errorf("interrupting process group %d: %w", w.pid, err)
				}
				state = stateInterruptSent
				continue
			case stateInterruptSent:
				if !exited() {
					w.log.Debug("still alive after interrupt, killing process group",
						zap.Int("pid", w.pid))
					if err := w.signal.Kill(w.pid); err != nil {
						return false, fmt.Errorf("killing process group %d: %w", w.pid, err)
					}
				}
				state = stateKillSent
				return true, nil
			}
		}

		w.sleep(w.interval)
	}
}

package runner

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeClock advances only when the watchdog sleeps.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeSignaler records delivered signals without touching any process.
type fakeSignaler struct {
	interrupts   int
	kills        int
	interruptErr error
	killErr      error
}

func (s *fakeSignaler) Supported() bool { return true }

func (s *fakeSignaler) Detach(cmd *exec.Cmd) {}

func (s *fakeSignaler) Interrupt(pid int) error {
	s.interrupts++
	return s.interruptErr
}

func (s *fakeSignaler) Kill(pid int) error {
	s.kills++
	return s.killErr
}

func newTestWatchdog(clk *fakeClock, sig GroupSignaler, timeout time.Duration) *watchdog {
	return &watchdog{
		pid:      4242,
		deadline: clk.t.Add(timeout),
		signal:   sig,
		now:      clk.now,
		sleep:    func(time.Duration) { clk.advance(100 * time.Millisecond) },
		interval: 100 * time.Millisecond,
		log:      zap.NewNop(),
	}
}

func TestWatch_ExitBeforeDeadline(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	sig := &fakeSignaler{}
	w := newTestWatchdog(clk, sig, time.Second)

	polls := 0
	exited := func() bool {
		polls++
		return polls >= 3
	}

	killed, err := w.watch(context.Background(), exited)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if killed {
		t.Error("killed = true, want false")
	}
	if sig.interrupts != 0 || sig.kills != 0 {
		t.Errorf("signals sent for a clean exit: %d interrupts, %d kills", sig.interrupts, sig.kills)
	}
}

func TestWatch_EscalatesInterruptThenKill(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	sig := &fakeSignaler{}
	w := newTestWatchdog(clk, sig, time.Second)

	killed, err := w.watch(context.Background(), func() bool { return false })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !killed {
		t.Fatal("killed = false, want true")
	}
	if sig.interrupts != 1 {
		t.Errorf("interrupts = %d, want exactly 1", sig.interrupts)
	}
	if sig.kills != 1 {
		t.Errorf("kills = %d, want exactly 1", sig.kills)
	}
}

func TestWatch_InterruptAloneStopsGroup(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	sig := &fakeSignaler{}
	w := newTestWatchdog(clk, sig, time.Second)

	// The group dies as soon as the interrupt lands.
	exited := func() bool { return sig.interrupts > 0 }

	killed, err := w.watch(context.Background(), exited)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The deadline breach still decides the outcome.
	if !killed {
		t.Error("killed = false, want true")
	}
	if sig.kills != 0 {
		t.Errorf("kills = %d, want 0 when the interrupt was enough", sig.kills)
	}
}

func TestWatch_InterruptError(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	sig := &fakeSignaler{interruptErr: errors.New("boom")}
	w := newTestWatchdog(clk, sig, time.Second)

	_, err := w.watch(context.Background(), func() bool { return false })
	if err == nil {
		t.Fatal("expected interrupt delivery error")
	}
}

func TestWatch_ContextCanceled(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	sig := &fakeSignaler{}
	w := newTestWatchdog(clk, sig, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.watch(ctx, func() bool { return false })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if sig.kills != 1 {
		t.Errorf("kills = %d, want 1 on cancellation", sig.kills)
	}
}

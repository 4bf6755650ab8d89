// Package runner executes Salt CLI tools as shell commands in their own
// process group, with wall-clock timeouts, escalating group signals, and
// deadlock-free output capture.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/h4ck3rm1k3/salt-testing/internal/record"
)

// KilledStderr is reported in place of stderr when a timed-out child is
// killed before its output could be collected.
const KilledStderr = "Process killed, unable to catch stderr output"

// ErrTimeoutUnsupported is returned when an Invocation requests a timeout
// on a platform without process group signaling. Nothing is spawned.
var ErrTimeoutUnsupported = errors.New("timeouts require process group signaling, which this platform does not support")

const defaultPollInterval = 10 * time.Millisecond

// DefaultMaxOutput caps each captured stream when no limit is configured.
const DefaultMaxOutput = 1 << 20 // 1 MB

// ScriptLocator resolves tool names to executable paths.
type ScriptLocator interface {
	Path(name string) (string, error)
}

// Runner executes invocations through the shell. The zero value needs at
// least Scripts before use; everything else has working defaults.
type Runner struct {
	Scripts    ScriptLocator
	Workspace  string        // child working directory; empty inherits ours
	PathPrefix []string      // prepended to the child's PATH
	PythonPath []string      // prepended to the child's PYTHONPATH
	MaxOutput  int           // per-stream capture cap in bytes
	Signal     GroupSignaler // defaults to the platform signaler
	Records    record.Store  // optional execution record sink
	Log        *zap.Logger

	// Test seams; production code leaves these nil.
	spawn    func(*exec.Cmd) error
	now      func() time.Time
	sleep    func(time.Duration)
	interval time.Duration
}

// Execute runs one Invocation to completion and shapes the Result to
// exactly the requested flags. A tool that cannot be located is a soft
// failure reported through Result.Missing, not an error.
func (r *Runner) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	if inv.Script == "" {
		return nil, fmt.Errorf("empty script name")
	}

	sig := r.signaler()
	if inv.Timeout > 0 && !sig.Supported() {
		return nil, ErrTimeoutUnsupported
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := r.clock()()
	res := &Result{RunID: uuid.New().String()}

	path, err := r.Scripts.Path(inv.Script)
	if err != nil {
		r.logger().Warn("tool could not be located",
			zap.String("script", inv.Script), zap.Error(err))
		res.Missing = true
		return r.finish(inv, res, start, nil, nil), nil
	}

	cmdline := path
	if inv.Args != "" {
		cmdline += " " + inv.Args
	}

	cmd := exec.Command("/bin/sh", "-c", cmdline)
	if r.Workspace != "" {
		cmd.Dir = r.Workspace
	}
	cmd.Env = r.childEnv()
	sig.Detach(cmd)

	maxOutput := r.maxOutput()
	var stdout, stderr bytes.Buffer
	// Buffer writers let os/exec drain both pipes concurrently, so a child
	// filling one stream can never deadlock against the other.
	cmd.Stdout = &limitWriter{buf: &stdout, limit: maxOutput}
	if inv.CatchStderr {
		cmd.Stderr = &limitWriter{buf: &stderr, limit: maxOutput}
	} else {
		cmd.Stderr = os.Stderr
	}

	r.logger().Debug("spawning", zap.String("script", inv.Script),
		zap.String("cmd", cmdline), zap.Duration("timeout", inv.Timeout))
	if err := r.start(cmd); err != nil {
		return nil, fmt.Errorf("spawning %s: %w", inv.Script, err)
	}
	defer terminateQuietly(cmd.Process)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	exited := false
	observe := func() bool {
		if exited {
			return true
		}
		select {
		case waitErr = <-done:
			exited = true
		default:
		}
		return exited
	}

	if inv.Timeout > 0 {
		w := &watchdog{
			pid:      cmd.Process.Pid,
			deadline: start.Add(inv.Timeout),
			signal:   sig,
			now:      r.clock(),
			sleep:    r.sleeper(),
			interval: r.pollInterval(),
			log:      r.logger(),
		}
		killed, err := w.watch(ctx, observe)
		if err != nil {
			return nil, err
		}
		if killed {
			res.Killed = true
			// Kill reporting is line-based even for raw requests.
			res.Stdout = []string{timeoutMessage(inv.Timeout)}
			if inv.CatchStderr {
				res.HasStderr = true
				res.Stderr = []string{KilledStderr}
			}
			if inv.WantExitCode {
				res.HasExit = true
				res.ExitCode = -1 // never collected; the group is gone
			}
			return r.finish(inv, res, start, nil, nil), nil
		}
	}

	if !exited {
		select {
		case waitErr = <-done:
		case <-ctx.Done():
			_ = sig.Kill(cmd.Process.Pid)
			<-done
			return nil, ctx.Err()
		}
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("running %s: %w", inv.Script, waitErr)
		}
	}

	res.Truncated = stdout.Len() >= maxOutput ||
		(inv.CatchStderr && stderr.Len() >= maxOutput)

	if inv.Raw {
		res.RawStdout = stdout.Bytes()
	} else {
		res.Stdout = splitLines(stdout.Bytes())
	}
	if inv.CatchStderr {
		res.HasStderr = true
		if inv.Raw {
			res.RawStderr = stderr.Bytes()
		} else {
			res.Stderr = splitLines(stderr.Bytes())
		}
	}
	if inv.WantExitCode {
		res.HasExit = true
		res.ExitCode = exitCode
	}

	return r.finish(inv, res, start, stdout.Bytes(), stderr.Bytes()), nil
}

// finish stamps the duration and saves an execution record when a store
// is wired. Record failures are logged, never surfaced to the caller.
func (r *Runner) finish(inv Invocation, res *Result, start time.Time, stdout, stderr []byte) *Result {
	res.Duration = r.clock()().Sub(start)
	if r.Records == nil {
		return res
	}
	rec := &record.Record{
		ID:           res.RunID,
		Script:       inv.Script,
		Args:         inv.Args,
		Start:        start,
		CatchStderr:  inv.CatchStderr,
		WantExitCode: inv.WantExitCode,
		Raw:          inv.Raw,
		ExitCode:     res.ExitCode,
		HasExit:      res.HasExit,
		Killed:       res.Killed,
		Missing:      res.Missing,
		Truncated:    res.Truncated,
		Duration:     res.Duration,
		StdoutTail:   tail(stdout, 2048),
		StderrTail:   tail(stderr, 2048),
	}
	if err := r.Records.Save(rec); err != nil {
		r.logger().Warn("saving execution record", zap.String("id", rec.ID), zap.Error(err))
	}
	return res
}

func (r *Runner) childEnv() []string {
	env := os.Environ()
	if len(r.PathPrefix) > 0 {
		env = prependPath(env, "PATH", r.PathPrefix)
	}
	if len(r.PythonPath) > 0 {
		env = prependPath(env, "PYTHONPATH", r.PythonPath)
	}
	return env
}

// prependPath rebuilds a list-valued variable with entries in front of
// the inherited value. An absent inherited value is tolerated.
func prependPath(env []string, key string, entries []string) []string {
	prefix := strings.Join(entries, string(os.PathListSeparator))
	for i, kv := range env {
		if strings.HasPrefix(kv, key+"=") {
			val := kv[len(key)+1:]
			if val != "" {
				prefix = prefix + string(os.PathListSeparator) + val
			}
			env[i] = key + "=" + prefix
			return env
		}
	}
	return append(env, key+"="+prefix)
}

func (r *Runner) start(cmd *exec.Cmd) error {
	if r.spawn != nil {
		return r.spawn(cmd)
	}
	return cmd.Start()
}

func (r *Runner) signaler() GroupSignaler {
	if r.Signal != nil {
		return r.Signal
	}
	return NewGroupSignaler()
}

func (r *Runner) logger() *zap.Logger {
	if r.Log != nil {
		return r.Log
	}
	return zap.NewNop()
}

func (r *Runner) clock() func() time.Time {
	if r.now != nil {
		return r.now
	}
	return time.Now
}

func (r *Runner) sleeper() func(time.Duration) {
	if r.sleep != nil {
		return r.sleep
	}
	return time.Sleep
}

func (r *Runner) pollInterval() time.Duration {
	if r.interval > 0 {
		return r.interval
	}
	return defaultPollInterval
}

func (r *Runner) maxOutput() int {
	if r.MaxOutput > 0 {
		return r.MaxOutput
	}
	return DefaultMaxOutput
}

// timeoutMessage renders the bound in seconds without trailing zeros,
// so both "1" and "0.5" read naturally.
func timeoutMessage(d time.Duration) string {
	secs := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	return fmt.Sprintf("Process took more than %s seconds to complete. Process Killed!", secs)
}

// splitLines splits captured output into lines. A single trailing newline
// does not produce an empty entry, and empty output yields nil.
func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSuffix(ln, "\r")
	}
	return lines
}

// tail returns up to the last n bytes of b as a string.
func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}

// terminateQuietly sends a courtesy SIGTERM on the way out. The child is
// normally gone by then; a process that already finished is not an error.
func terminateQuietly(p *os.Process) {
	if p == nil {
		return
	}
	_ = p.Signal(syscall.SIGTERM)
}

// limitWriter writes up to limit bytes to buf, then silently discards the rest.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Write only what fits, but report all bytes as consumed
		// to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}

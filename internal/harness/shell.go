package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/h4ck3rm1k3/salt-testing/internal/runner"
)

// Executor runs one tool invocation. *runner.Runner is the production
// implementation; tests substitute fakes.
type Executor interface {
	Execute(ctx context.Context, inv runner.Invocation) (*runner.Result, error)
}

// Option adjusts one invocation made through the Shell.
type Option func(*runner.Invocation)

// WithStderr captures stderr separately instead of letting it pass
// through to the parent.
func WithStderr() Option {
	return func(inv *runner.Invocation) { inv.CatchStderr = true }
}

// WithExitCode includes the process exit code in the result.
func WithExitCode() Option {
	return func(inv *runner.Invocation) { inv.WantExitCode = true }
}

// WithRaw returns output as raw bytes instead of split lines.
func WithRaw() Option {
	return func(inv *runner.Invocation) { inv.Raw = true }
}

// WithTimeout bounds the invocation's wall-clock time.
func WithTimeout(d time.Duration) Option {
	return func(inv *runner.Invocation) { inv.Timeout = d }
}

// Shell wraps the Salt command-line tools, assembling each tool's
// argument string around the configured configuration directory.
type Shell struct {
	Exec      Executor
	ConfigDir string
	SSHPriv   string // salt-ssh private key, <ConfigDir>/key_test when empty
	SSHRoster string // salt-ssh roster file, <ConfigDir>/roster when empty
	Log       *zap.Logger
}

// RunSalt runs the salt CLI tool with the provided arguments.
func (s *Shell) RunSalt(ctx context.Context, args string, opts ...Option) (*runner.Result, error) {
	return s.run(ctx, "salt", fmt.Sprintf("-c %s %s", s.ConfigDir, args), opts...)
}

// RunRun runs salt-run with the provided arguments.
func (s *Shell) RunRun(ctx context.Context, args string, opts ...Option) (*runner.Result, error) {
	return s.run(ctx, "salt-run", fmt.Sprintf("-c %s %s", s.ConfigDir, args), opts...)
}

// RunKey runs salt-key with the provided arguments.
func (s *Shell) RunKey(ctx context.Context, args string, opts ...Option) (*runner.Result, error) {
	return s.run(ctx, "salt-key", fmt.Sprintf("-c %s %s", s.ConfigDir, args), opts...)
}

// RunCall runs salt-call with the provided arguments.
func (s *Shell) RunCall(ctx context.Context, args string, opts ...Option) (*runner.Result, error) {
	return s.run(ctx, "salt-call", fmt.Sprintf("--config-dir %s %s", s.ConfigDir, args), opts...)
}

// RunCP runs salt-cp with the provided arguments.
func (s *Shell) RunCP(ctx context.Context, args string, opts ...Option) (*runner.Result, error) {
	return s.run(ctx, "salt-cp", fmt.Sprintf("--config-dir %s %s", s.ConfigDir, args), opts...)
}

// RunCloud runs salt-cloud. Cloud runs expose only the stderr capture
// and timeout knobs.
func (s *Shell) RunCloud(ctx context.Context, args string, catchStderr bool, timeout time.Duration) (*runner.Result, error) {
	var opts []Option
	if catchStderr {
		opts = append(opts, WithStderr())
	}
	if timeout > 0 {
		opts = append(opts, WithTimeout(timeout))
	}
	return s.run(ctx, "salt-cloud", fmt.Sprintf("-c %s %s", s.ConfigDir, args), opts...)
}

// RunSSH runs salt-ssh against localhost with JSON output. The output
// is always raw so callers can decode it.
func (s *Shell) RunSSH(ctx context.Context, args string, opts ...Option) (*runner.Result, error) {
	assembled := fmt.Sprintf("-c %s -i --priv %s --roster-file %s localhost %s --out=json",
		s.ConfigDir, s.priv(), s.roster(), args)
	opts = append(opts, WithRaw())
	return s.run(ctx, "salt-ssh", assembled, opts...)
}

func (s *Shell) run(ctx context.Context, tool, args string, opts ...Option) (*runner.Result, error) {
	inv := runner.Invocation{Script: tool, Args: args}
	for _, opt := range opts {
		opt(&inv)
	}
	s.logger().Debug("running salt tool",
		zap.String("tool", tool),
		zap.String("args", args))
	return s.Exec.Execute(ctx, inv)
}

func (s *Shell) priv() string {
	if s.SSHPriv != "" {
		return s.SSHPriv
	}
	return filepath.Join(s.ConfigDir, "key_test")
}

func (s *Shell) roster() string {
	if s.SSHRoster != "" {
		return s.SSHRoster
	}
	return filepath.Join(s.ConfigDir, "roster")
}

func (s *Shell) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

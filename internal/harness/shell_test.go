package harness

import (
	"context"
	"testing"
	"time"

	"github.com/h4ck3rm1k3/salt-testing/internal/runner"
)

type fakeExecutor struct {
	invs []runner.Invocation
	res  *runner.Result
	err  error
}

func (f *fakeExecutor) Execute(_ context.Context, inv runner.Invocation) (*runner.Result, error) {
	f.invs = append(f.invs, inv)
	if f.err != nil {
		return nil, f.err
	}
	if f.res != nil {
		return f.res, nil
	}
	return &runner.Result{}, nil
}

func (f *fakeExecutor) last(t *testing.T) runner.Invocation {
	t.Helper()
	if len(f.invs) == 0 {
		t.Fatal("no invocation recorded")
	}
	return f.invs[len(f.invs)-1]
}

func TestShell_ArgumentAssembly(t *testing.T) {
	tests := []struct {
		name string
		call func(ctx context.Context, s *Shell) error
		tool string
		args string
	}{
		{
			name: "salt",
			call: func(ctx context.Context, s *Shell) error {
				_, err := s.RunSalt(ctx, "-L minion test.ping")
				return err
			},
			tool: "salt",
			args: "-c /conf -L minion test.ping",
		},
		{
			name: "salt-run",
			call: func(ctx context.Context, s *Shell) error {
				_, err := s.RunRun(ctx, "jobs.active")
				return err
			},
			tool: "salt-run",
			args: "-c /conf jobs.active",
		},
		{
			name: "salt-key",
			call: func(ctx context.Context, s *Shell) error {
				_, err := s.RunKey(ctx, "-L")
				return err
			},
			tool: "salt-key",
			args: "-c /conf -L",
		},
		{
			name: "salt-call",
			call: func(ctx context.Context, s *Shell) error {
				_, err := s.RunCall(ctx, "test.ping")
				return err
			},
			tool: "salt-call",
			args: "--config-dir /conf test.ping",
		},
		{
			name: "salt-cp",
			call: func(ctx context.Context, s *Shell) error {
				_, err := s.RunCP(ctx, "minion /src /dst")
				return err
			},
			tool: "salt-cp",
			args: "--config-dir /conf minion /src /dst",
		},
		{
			name: "salt-cloud",
			call: func(ctx context.Context, s *Shell) error {
				_, err := s.RunCloud(ctx, "-p profile instance", false, 0)
				return err
			},
			tool: "salt-cloud",
			args: "-c /conf -p profile instance",
		},
		{
			name: "salt-ssh",
			call: func(ctx context.Context, s *Shell) error {
				_, err := s.RunSSH(ctx, "test.ping")
				return err
			},
			tool: "salt-ssh",
			args: "-c /conf -i --priv /conf/key_test --roster-file /conf/roster localhost test.ping --out=json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			s := &Shell{Exec: exec, ConfigDir: "/conf"}
			if err := tt.call(context.Background(), s); err != nil {
				t.Fatalf("call returned error: %v", err)
			}
			inv := exec.last(t)
			if inv.Script != tt.tool {
				t.Errorf("Script = %q, want %q", inv.Script, tt.tool)
			}
			if inv.Args != tt.args {
				t.Errorf("Args = %q, want %q", inv.Args, tt.args)
			}
		})
	}
}

func TestShell_Options(t *testing.T) {
	exec := &fakeExecutor{}
	s := &Shell{Exec: exec, ConfigDir: "/conf"}

	_, err := s.RunSalt(context.Background(), "test.ping",
		WithStderr(), WithExitCode(), WithRaw(), WithTimeout(30*time.Second))
	if err != nil {
		t.Fatalf("RunSalt returned error: %v", err)
	}

	inv := exec.last(t)
	if !inv.CatchStderr || !inv.WantExitCode || !inv.Raw {
		t.Errorf("flags = (%v, %v, %v), want all true", inv.CatchStderr, inv.WantExitCode, inv.Raw)
	}
	if inv.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", inv.Timeout)
	}
}

func TestShell_DefaultsOff(t *testing.T) {
	exec := &fakeExecutor{}
	s := &Shell{Exec: exec, ConfigDir: "/conf"}

	if _, err := s.RunSalt(context.Background(), "test.ping"); err != nil {
		t.Fatalf("RunSalt returned error: %v", err)
	}

	inv := exec.last(t)
	if inv.CatchStderr || inv.WantExitCode || inv.Raw || inv.Timeout != 0 {
		t.Errorf("bare invocation carries options: %+v", inv)
	}
}

func TestShell_SSHForcesRaw(t *testing.T) {
	exec := &fakeExecutor{}
	s := &Shell{Exec: exec, ConfigDir: "/conf"}

	if _, err := s.RunSSH(context.Background(), "test.ping"); err != nil {
		t.Fatalf("RunSSH returned error: %v", err)
	}
	if inv := exec.last(t); !inv.Raw {
		t.Error("RunSSH did not request raw output")
	}
}

func TestShell_SSHExplicitPaths(t *testing.T) {
	exec := &fakeExecutor{}
	s := &Shell{
		Exec:      exec,
		ConfigDir: "/conf",
		SSHPriv:   "/keys/id_test",
		SSHRoster: "/etc/roster",
	}

	if _, err := s.RunSSH(context.Background(), "test.ping"); err != nil {
		t.Fatalf("RunSSH returned error: %v", err)
	}

	want := "-c /conf -i --priv /keys/id_test --roster-file /etc/roster localhost test.ping --out=json"
	if inv := exec.last(t); inv.Args != want {
		t.Errorf("Args = %q, want %q", inv.Args, want)
	}
}

func TestShell_CloudKnobs(t *testing.T) {
	exec := &fakeExecutor{}
	s := &Shell{Exec: exec, ConfigDir: "/conf"}

	_, err := s.RunCloud(context.Background(), "-p profile instance", true, time.Minute)
	if err != nil {
		t.Fatalf("RunCloud returned error: %v", err)
	}

	inv := exec.last(t)
	if !inv.CatchStderr {
		t.Error("CatchStderr not set")
	}
	if inv.Timeout != time.Minute {
		t.Errorf("Timeout = %v, want 1m", inv.Timeout)
	}
	if inv.WantExitCode || inv.Raw {
		t.Errorf("cloud run set unexpected flags: %+v", inv)
	}
}

package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/h4ck3rm1k3/salt-testing/internal/harness"
	"github.com/h4ck3rm1k3/salt-testing/internal/runner"
)

type runParams struct {
	Tool         string `json:"tool" jsonschema:"the Salt CLI tool to run: salt, salt-call, salt-run, salt-key, salt-cp, salt-cloud, or salt-ssh"`
	Args         string `json:"args,omitempty" jsonschema:"argument string passed to the tool after the configuration flags"`
	CatchStderr  bool   `json:"catch_stderr,omitempty" jsonschema:"capture stderr separately instead of passing it through"`
	WantExitCode bool   `json:"want_exit_code,omitempty" jsonschema:"include the process exit code in the result"`
	Raw          bool   `json:"raw,omitempty" jsonschema:"return output as raw text instead of split lines"`
	TimeoutSecs  int    `json:"timeout_seconds,omitempty" jsonschema:"wall-clock bound in seconds; defaults to the configured run timeout"`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if params.Tool == "" {
		return errorResult("tool is required (one of: salt, salt-call, salt-run, salt-key, salt-cp, salt-cloud, salt-ssh)")
	}

	timeout := h.cfg.RunTimeout()
	if params.TimeoutSecs > 0 {
		timeout = time.Duration(params.TimeoutSecs) * time.Second
	}

	var opts []harness.Option
	if params.CatchStderr {
		opts = append(opts, harness.WithStderr())
	}
	if params.WantExitCode {
		opts = append(opts, harness.WithExitCode())
	}
	if params.Raw {
		opts = append(opts, harness.WithRaw())
	}
	if timeout > 0 {
		opts = append(opts, harness.WithTimeout(timeout))
	}

	var (
		res *runner.Result
		err error
	)
	switch params.Tool {
	case "salt":
		res, err = h.shell.RunSalt(ctx, params.Args, opts...)
	case "salt-call":
		res, err = h.shell.RunCall(ctx, params.Args, opts...)
	case "salt-run":
		res, err = h.shell.RunRun(ctx, params.Args, opts...)
	case "salt-key":
		res, err = h.shell.RunKey(ctx, params.Args, opts...)
	case "salt-cp":
		res, err = h.shell.RunCP(ctx, params.Args, opts...)
	case "salt-cloud":
		res, err = h.shell.RunCloud(ctx, params.Args, params.CatchStderr, timeout)
	case "salt-ssh":
		res, err = h.shell.RunSSH(ctx, params.Args, opts...)
	default:
		return errorResult(fmt.Sprintf("unknown tool %q (one of: salt, salt-call, salt-run, salt-key, salt-cp, salt-cloud, salt-ssh)", params.Tool))
	}
	if err != nil {
		return errorResult(fmt.Sprintf("running %s failed: %v", params.Tool, err))
	}
	if res.Missing {
		return errorResult(fmt.Sprintf("Run: %s\n%s could not be located; check the script directory with salt_workspace.", res.RunID, params.Tool))
	}

	return textResult(formatRunResult(params.Tool, res))
}

func formatRunResult(tool string, res *runner.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s\n", res.RunID)
	fmt.Fprintf(&b, "Tool: %s\n", tool)
	switch {
	case res.Killed:
		fmt.Fprintln(&b, "Outcome: killed (deadline exceeded)")
	case res.HasExit:
		fmt.Fprintf(&b, "Outcome: exit %d\n", res.ExitCode)
	default:
		fmt.Fprintln(&b, "Outcome: completed")
	}
	fmt.Fprintf(&b, "Duration: %s\n", res.Duration.Round(time.Millisecond))
	if res.Truncated {
		fmt.Fprintln(&b, "Note: output exceeded the capture cap and was truncated")
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Stdout:")
	if len(res.RawStdout) > 0 {
		writeIndented(&b, strings.Split(strings.TrimRight(string(res.RawStdout), "\n"), "\n"))
	} else {
		writeIndented(&b, res.Stdout)
	}

	if res.HasStderr {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Stderr:")
		if len(res.RawStderr) > 0 {
			writeIndented(&b, strings.Split(strings.TrimRight(string(res.RawStderr), "\n"), "\n"))
		} else {
			writeIndented(&b, res.Stderr)
		}
	}

	return b.String()
}

func writeIndented(b *strings.Builder, lines []string) {
	if len(lines) == 0 {
		fmt.Fprintln(b, "    (empty)")
		return
	}
	for _, line := range lines {
		fmt.Fprintf(b, "    %s\n", line)
	}
}

package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/h4ck3rm1k3/salt-testing/internal/record"
)

type recordParams struct {
	RunID string `json:"run_id" jsonschema:"the run id from a salt_run result"`
}

func (h *handler) recordHandler(ctx context.Context, req *mcp.CallToolRequest, params recordParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	rec, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	return textResult(formatRecord(rec))
}

func formatRecord(rec *record.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s\n", rec.ID)
	fmt.Fprintf(&b, "Tool: %s", rec.Script)
	if rec.Args != "" {
		fmt.Fprintf(&b, " %s", rec.Args)
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Started: %s\n", rec.Start.Format(time.RFC3339))
	fmt.Fprintf(&b, "Outcome: %s\n", rec.Outcome())
	fmt.Fprintf(&b, "Duration: %s\n", rec.Duration.Round(time.Millisecond))

	var flags []string
	if rec.CatchStderr {
		flags = append(flags, "catch_stderr")
	}
	if rec.WantExitCode {
		flags = append(flags, "want_exit_code")
	}
	if rec.Raw {
		flags = append(flags, "raw")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, "Flags: %s\n", strings.Join(flags, ", "))
	}
	if rec.Truncated {
		fmt.Fprintln(&b, "Note: output exceeded the capture cap and was truncated")
	}

	if rec.StdoutTail != "" {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Stdout tail:")
		writeIndented(&b, strings.Split(strings.TrimRight(rec.StdoutTail, "\n"), "\n"))
	}
	if rec.StderrTail != "" {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Stderr tail:")
		writeIndented(&b, strings.Split(strings.TrimRight(rec.StderrTail, "\n"), "\n"))
	}

	return b.String()
}

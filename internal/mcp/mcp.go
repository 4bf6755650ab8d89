// Package mcp provides the salttest MCP server, registering the salt
// tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	salttesting "github.com/h4ck3rm1k3/salt-testing"
	"github.com/h4ck3rm1k3/salt-testing/internal/config"
	"github.com/h4ck3rm1k3/salt-testing/internal/harness"
	"github.com/h4ck3rm1k3/salt-testing/internal/record"
	"github.com/h4ck3rm1k3/salt-testing/internal/runner"
	"github.com/h4ck3rm1k3/salt-testing/internal/scripts"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	cfg    *config.Config
	runner *runner.Runner // nil when root rewiring is not wanted
	shell  *harness.Shell
	client *harness.Client
	store  record.Store
}

// NewServer creates an MCP server with all salttest tools registered.
func NewServer(cfg *config.Config, r *runner.Runner, shell *harness.Shell, client *harness.Client, store record.Store) *mcp.Server {
	h := &handler{
		cfg:    cfg,
		runner: r,
		shell:  shell,
		client: client,
		store:  store,
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "salttest", Version: salttesting.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "salt_run",
		Description: `Run one Salt CLI tool (salt, salt-call, salt-run, salt-key, salt-cp, salt-cloud, salt-ssh) with an argument string.

The tool runs in its own process group with the configured timeout; a run that exceeds it is interrupted
and then killed as a whole. Output is captured without deadlocking the child. The result is stored for
later retrieval via salt_record.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "salt_call",
		Description: `Invoke one remote execution-module function on the configured target minion and return the reply.

Use this for function-level checks (e.g. test.ping, grains.items, state.single). A missing or empty
reply is reported as SKIP rather than failure, matching integration-test semantics. State function
results are reconciled against stalled jobs before being returned.`,
	}, h.callHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "salt_record",
		Description: `Fetch the stored execution record for a previous salt_run by run id.

Use the run_id printed in salt_run output. The record holds the request flags, outcome, duration,
and output tails.`,
	}, h.recordHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "salt_workspace",
		Description: "Summarise the harness configuration and the host it runs on: target, config dir, script dir, timeouts, and host facts.",
	}, h.workspaceHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and rewires the
// runner, shell, and client from the configuration found at the first root.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	if h.runner == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		return
	}
	cfg := loaded.Config

	h.runner.Workspace = workspace
	h.runner.MaxOutput = cfg.MaxOutputBytes()
	h.runner.PathPrefix = cfg.PathPrefix
	h.runner.Scripts = &scripts.Locator{
		Dir:      cfg.ScriptDir(loaded.RepoRoot),
		Coverage: cfg.Scripts.Coverage,
	}

	h.shell.ConfigDir = cfg.ConfigDir
	h.shell.SSHPriv = cfg.SSHPriv()
	h.shell.SSHRoster = cfg.SSHRoster()

	h.client.Target = cfg.TargetName()
	h.client.Timeout = cfg.FunctionTimeout()
	h.client.NoneReturners = cfg.KnownNoneReturners()

	h.cfg = cfg
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}

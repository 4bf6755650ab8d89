package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/h4ck3rm1k3/salt-testing/internal/config"
	"github.com/h4ck3rm1k3/salt-testing/internal/harness"
)

type callParams struct {
	Function    string   `json:"function" jsonschema:"the execution-module function to invoke (e.g. test.ping, grains.items, state.single)"`
	Args        []string `json:"args,omitempty" jsonschema:"positional arguments for the function"`
	Target      string   `json:"target,omitempty" jsonschema:"minion id to target; defaults to the configured target"`
	TimeoutSecs int      `json:"timeout_seconds,omitempty" jsonschema:"bounded wait in seconds; defaults to the configured function timeout"`
}

func (h *handler) callHandler(ctx context.Context, req *mcp.CallToolRequest, params callParams) (*mcp.CallToolResult, any, error) {
	if params.Function == "" {
		return errorResult("function is required")
	}

	client := *h.client
	if params.Target != "" {
		client.Target = params.Target
	}
	if params.TimeoutSecs > 0 {
		client.Timeout = time.Duration(params.TimeoutSecs) * time.Second
	}

	ret, err := client.RunFunction(ctx, params.Function, params.Args...)
	if err != nil {
		var skip harness.ErrSkip
		if errors.As(err, &skip) {
			return textResult("SKIP: " + skip.Error())
		}
		return errorResult(fmt.Sprintf("invoking %s failed: %v", params.Function, err))
	}

	target := client.Target
	if target == "" {
		target = config.DefaultTarget
	}

	rendered, err := json.MarshalIndent(ret, "", "  ")
	if err != nil {
		rendered = []byte(fmt.Sprintf("%v", ret))
	}
	return textResult(fmt.Sprintf("%s on %s:\n%s", params.Function, target, rendered))
}

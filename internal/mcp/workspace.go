package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/h4ck3rm1k3/salt-testing/internal/scripts"
)

type workspaceParams struct{}

func (h *handler) workspaceHandler(ctx context.Context, req *sdkmcp.CallToolRequest, _ workspaceParams) (*sdkmcp.CallToolResult, any, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Target: %s\n", h.cfg.TargetName())
	if h.cfg.ConfigDir != "" {
		fmt.Fprintf(&b, "Config dir: %s\n", h.cfg.ConfigDir)
	} else {
		fmt.Fprintln(&b, "Config dir: (not configured)")
	}
	fmt.Fprintf(&b, "Script dir: %s\n", h.scriptDir())
	fmt.Fprintf(&b, "Function timeout: %s\n", h.cfg.FunctionTimeout())
	if rt := h.cfg.RunTimeout(); rt > 0 {
		fmt.Fprintf(&b, "Run timeout: %s\n", rt)
	} else {
		fmt.Fprintln(&b, "Run timeout: unbounded")
	}
	fmt.Fprintf(&b, "Known none returners: %s\n", strings.Join(h.cfg.KnownNoneReturners(), ", "))
	if h.runner != nil && h.runner.Workspace != "" {
		fmt.Fprintf(&b, "Workspace: %s\n", h.runner.Workspace)
	}

	fmt.Fprintln(&b)
	writeHostFacts(ctx, &b)

	return textResult(b.String())
}

func (h *handler) scriptDir() string {
	if h.runner != nil {
		if loc, ok := h.runner.Scripts.(*scripts.Locator); ok && loc.Dir != "" {
			return loc.Dir
		}
	}
	if h.cfg.Scripts.Dir != "" {
		return h.cfg.Scripts.Dir
	}
	return "(default)"
}

func writeHostFacts(ctx context.Context, b *strings.Builder) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if info, err := host.InfoWithContext(ctx); err == nil {
		fmt.Fprintf(b, "Host: %s (%s %s, %s)\n",
			info.Hostname, info.Platform, info.PlatformVersion, info.KernelArch)
	} else {
		fmt.Fprintln(b, "Host: (unavailable)")
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		fmt.Fprintf(b, "CPUs: %d logical\n", n)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		fmt.Fprintf(b, "Memory: %.1f GiB\n", float64(vm.Total)/float64(1<<30))
	}
}

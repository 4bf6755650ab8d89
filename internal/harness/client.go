// Package harness drives remote Salt function and state invocations the
// way integration tests need them driven: bounded waits, missing or
// empty replies surfaced as skips instead of failures, and state
// results reconciled against stalled jobs.
package harness

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/h4ck3rm1k3/salt-testing/internal/config"
	"github.com/h4ck3rm1k3/salt-testing/internal/reconcile"
)

// Client invokes functions on one target minion. The zero value targets
// "minion" with the default timeout and allowlist, and reconciles
// stalled jobs through its own invocation path.
type Client struct {
	Target        string
	Caller        Caller
	Reconciler    *reconcile.Reconciler
	Timeout       time.Duration // per-invocation bound, default 25s
	NoneReturners []string      // functions allowed to return nothing
	Log           *zap.Logger
}

// RunFunction invokes one function and conditions the reply down to the
// bare function return. A reply that is missing the target, or present
// but empty for a function not known to return nothing, comes back as
// ErrSkip. State function results pass through the reconciler.
func (c *Client) RunFunction(ctx context.Context, function string, args ...string) (any, error) {
	reply, err := c.Caller.Call(ctx, c.target(), function, args, c.timeout())
	if err != nil {
		return nil, err
	}

	val, ok := reply[c.target()]
	if !ok {
		return nil, ErrSkip{Target: c.target(), Output: reply}
	}
	if val == nil && !c.noneAllowed(function) {
		return nil, ErrSkip{Target: c.target(), Function: function, Output: reply}
	}

	if strings.HasPrefix(function, "state.") {
		return c.reconciler().Reconcile(ctx, val, function)
	}
	return val, nil
}

// RunState runs the named state function through state.single and
// returns the state return structure.
func (c *Client) RunState(ctx context.Context, function string, args ...string) (any, error) {
	return c.RunFunction(ctx, "state.single", append([]string{function}, args...)...)
}

// FindJob queries a running job by jid.
func (c *Client) FindJob(ctx context.Context, jid string) (any, error) {
	return c.RunFunction(ctx, "saltutil.find_job", jid)
}

// KillJob terminates a running job by jid.
func (c *Client) KillJob(ctx context.Context, jid string) (any, error) {
	return c.RunFunction(ctx, "saltutil.kill_job", jid)
}

func (c *Client) target() string {
	if c.Target != "" {
		return c.Target
	}
	return config.DefaultTarget
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return config.DefaultFunctionTimeout
}

func (c *Client) noneAllowed(function string) bool {
	allowed := c.NoneReturners
	if allowed == nil {
		allowed = config.DefaultNoneReturners
	}
	return slices.Contains(allowed, function)
}

func (c *Client) reconciler() *reconcile.Reconciler {
	if c.Reconciler != nil {
		return c.Reconciler
	}
	return &reconcile.Reconciler{Jobs: c, Log: c.Log}
}

package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Caller invokes one remote function against one target with a bounded
// wait and returns the decoded per-target reply map.
type Caller interface {
	Call(ctx context.Context, target, function string, args []string, timeout time.Duration) (map[string]any, error)
}

// CLICaller shells out to the salt CLI with JSON output, so remote
// invocations go through the same bounded execution path as everything
// else. The timeout becomes salt's own gather timeout; the process is
// not bounded separately.
type CLICaller struct {
	Shell *Shell
	Log   *zap.Logger
}

func (c *CLICaller) Call(ctx context.Context, target, function string, args []string, timeout time.Duration) (map[string]any, error) {
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}

	// The target is quoted so glob targets survive the shell.
	assembled := fmt.Sprintf("-t %d --static --out=json '%s' %s", secs, target, function)
	if len(args) > 0 {
		assembled += " " + strings.Join(args, " ")
	}

	res, err := c.Shell.RunSalt(ctx, assembled, WithRaw(), WithStderr())
	if err != nil {
		return nil, err
	}
	if res.Missing {
		return nil, errors.New("salt command is not available")
	}
	if len(res.RawStderr) > 0 {
		c.logger().Debug("salt wrote to stderr",
			zap.String("function", function),
			zap.ByteString("stderr", res.RawStderr))
	}

	var reply map[string]any
	dec := json.NewDecoder(bytes.NewReader(res.RawStdout))
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("decoding reply for %s: %w (output: %.200s)", function, err, res.RawStdout)
	}
	return reply, nil
}

func (c *CLICaller) logger() *zap.Logger {
	if c.Log != nil {
		return c.Log
	}
	return zap.NewNop()
}

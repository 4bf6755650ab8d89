package harness

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// SSHClient invokes functions over salt-ssh against localhost.
type SSHClient struct {
	Shell *Shell
}

// RunFunction invokes one function and returns the localhost entry of
// the JSON reply. Output that does not decode, or decodes without a
// localhost entry, comes back as the raw text.
func (c *SSHClient) RunFunction(ctx context.Context, function string, args ...string) (any, error) {
	assembled := function
	if len(args) > 0 {
		assembled += " " + strings.Join(args, " ")
	}

	res, err := c.Shell.RunSSH(ctx, assembled)
	if err != nil {
		return nil, err
	}
	if res.Missing {
		return nil, errors.New("salt-ssh command is not available")
	}

	var decoded map[string]any
	if err := json.Unmarshal(res.RawStdout, &decoded); err == nil {
		if v, ok := decoded["localhost"]; ok {
			return v, nil
		}
	}
	return string(res.RawStdout), nil
}

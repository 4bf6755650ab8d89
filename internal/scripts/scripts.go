// Package scripts locates the Salt CLI entry scripts used by the harness,
// generating them from templates on first use.
package scripts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Entry script bodies, keyed by tool name. Tools without their own entry
// fall back to the "common" template with the tool suffix substituted.
var templates = map[string][]string{
	"salt": {
		"from salt.scripts import salt_main",
		"",
		"if __name__ == '__main__':",
		"    salt_main()",
	},
	"salt-api": {
		"import salt.cli",
		"",
		"def main():",
		"    sapi = salt.cli.SaltAPI()",
		"    sapi.run()",
		"",
		"if __name__ == '__main__':",
		"    main()",
	},
	"common": {
		"from salt.scripts import salt_%[1]s",
		"",
		"if __name__ == '__main__':",
		"    salt_%[1]s()",
	},
}

// Preamble enabling subprocess coverage collection when the harness is
// measuring the tools under test.
var coveragePreamble = []string{
	"try:",
	"    from coverage import process_startup",
	"    process_startup()",
	"except ImportError:",
	"    pass",
}

// Locator resolves tool names to executable entry script paths.
type Locator struct {
	Dir      string // entry script directory, created on demand
	CodeDir  string // optional source tree inserted into the script path
	Coverage bool   // prepend the coverage preamble to generated scripts
	Log      *zap.Logger
}

func (l *Locator) logger() *zap.Logger {
	if l.Log != nil {
		return l.Log
	}
	return zap.NewNop()
}

// Path returns the executable path for the named tool, generating the
// entry script when it does not exist yet. Tool names no template can
// serve are errors; the caller decides whether that is fatal.
func (l *Locator) Path(name string) (string, error) {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating script dir: %w", err)
	}

	path := filepath.Join(l.Dir, name)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	body, err := l.render(name)
	if err != nil {
		return "", err
	}

	l.logger().Debug("generating entry script", zap.String("tool", name), zap.String("path", path))
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func (l *Locator) render(name string) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		tmpl, ok = templates["common"]
	}
	if !ok || len(tmpl) == 0 {
		return "", fmt.Errorf("no entry script template for %q", name)
	}

	var b strings.Builder
	b.WriteString("#!/usr/bin/env python3\n\n")
	b.WriteString("import sys\n")
	if l.CodeDir != "" {
		fmt.Fprintf(&b, "CODE_DIR = r\"%s\"\n", l.CodeDir)
		b.WriteString("if CODE_DIR not in sys.path:\n")
		b.WriteString("    sys.path.insert(0, CODE_DIR)\n")
	}
	b.WriteString("\n")

	if l.Coverage {
		for _, line := range coveragePreamble {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	suffix := strings.ReplaceAll(name, "salt-", "")
	for _, line := range tmpl {
		if strings.Contains(line, "%[1]s") {
			fmt.Fprintf(&b, line, suffix)
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

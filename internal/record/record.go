// Package record provides structured persistence and retrieval of
// harness execution records, so a run referenced by id can be
// re-examined after the fact.
package record

import (
	"fmt"
	"time"
)

// Record holds the durable trace of one tool execution.
type Record struct {
	ID     string    `json:"id"`
	Script string    `json:"script"`
	Args   string    `json:"args,omitempty"`
	Start  time.Time `json:"start"`

	CatchStderr  bool `json:"catch_stderr,omitempty"`
	WantExitCode bool `json:"want_exit_code,omitempty"`
	Raw          bool `json:"raw,omitempty"`

	ExitCode  int           `json:"exit_code"`
	HasExit   bool          `json:"has_exit"`
	Killed    bool          `json:"killed,omitempty"`
	Missing   bool          `json:"missing,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
	Duration  time.Duration `json:"duration"`

	StdoutTail string `json:"stdout_tail,omitempty"`
	StderrTail string `json:"stderr_tail,omitempty"`
}

// Outcome summarizes how the execution ended.
func (r *Record) Outcome() string {
	switch {
	case r.Missing:
		return "missing: tool could not be located"
	case r.Killed:
		return "killed: deadline exceeded"
	case r.HasExit:
		return fmt.Sprintf("exit %d", r.ExitCode)
	default:
		return "completed"
	}
}

// Store persists and retrieves execution records.
type Store interface {
	Save(rec *Record) error
	Load(id string) (*Record, error)
}

package runner

import "time"

// Invocation describes one bounded execution of a Salt CLI tool.
type Invocation struct {
	Script       string        // tool name, resolved to an entry script
	Args         string        // fully assembled argument string
	CatchStderr  bool          // capture stderr separately
	WantExitCode bool          // include the exit code in the result
	Raw          bool          // return raw bytes instead of split lines
	Timeout      time.Duration // wall-clock bound; zero means unbounded
}

// Result holds the outcome of one Invocation. Field population mirrors
// the request flags: Stdout or RawStdout per Raw, the stderr pair only
// when CatchStderr, and the exit code only when WantExitCode.
type Result struct {
	RunID     string        `json:"run_id"`               // unique identifier for this run
	Stdout    []string      `json:"stdout,omitempty"`     // captured stdout, split into lines
	RawStdout []byte        `json:"raw_stdout,omitempty"` // captured stdout when Raw was requested
	Stderr    []string      `json:"stderr,omitempty"`     // captured stderr, split into lines
	RawStderr []byte        `json:"raw_stderr,omitempty"` // captured stderr when Raw was requested
	HasStderr bool          `json:"has_stderr,omitempty"` // stderr was captured
	ExitCode  int           `json:"exit_code"`            // process exit code; -1 when never collected
	HasExit   bool          `json:"has_exit"`             // exit code was requested
	Killed    bool          `json:"killed,omitempty"`     // the deadline fired and the group was killed
	Missing   bool          `json:"missing,omitempty"`    // the tool could not be located; nothing ran
	Truncated bool          `json:"truncated,omitempty"`  // output exceeded the size cap
	Duration  time.Duration `json:"duration"`             // wall-clock time spent in the execution
}

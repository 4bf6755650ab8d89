package harness

import "fmt"

// ErrSkip is returned when a function invocation produced no usable
// reply and the calling test should be skipped rather than failed.
// Function is empty when the target was absent from the reply entirely.
type ErrSkip struct {
	Target   string
	Function string
	Output   any
}

func (e ErrSkip) Error() string {
	if e.Function == "" {
		return fmt.Sprintf(
			"WARNING(SHOULD NOT HAPPEN #1935): Failed to get a reply "+
				"from the minion '%s'. Command output: %v",
			e.Target, e.Output)
	}
	return fmt.Sprintf(
		"WARNING(SHOULD NOT HAPPEN #1935): Failed to get '%s' from "+
			"the minion '%s'. Command output: %v",
		e.Function, e.Target, e.Output)
}

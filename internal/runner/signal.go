package runner

import "os/exec"

// GroupSignaler delivers signals to a child's entire process group.
// Signaling only the shell would leave the command it spawned running.
// The implementation is chosen per platform; callers must check
// Supported before relying on group delivery for timeout enforcement.
type GroupSignaler interface {
	// Supported reports whether group signaling works on this platform.
	Supported() bool
	// Detach arranges for cmd to start in its own process group.
	Detach(cmd *exec.Cmd)
	// Interrupt sends an interrupt to the process group led by pid.
	// A group that is already gone is not an error.
	Interrupt(pid int) error
	// Kill forcibly terminates the process group led by pid.
	// A group that is already gone is not an error.
	Kill(pid int) error
}

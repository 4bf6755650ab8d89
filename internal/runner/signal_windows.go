//go:build windows

package runner

import (
	"errors"
	"os/exec"
)

// NewGroupSignaler returns the platform group signaler.
func NewGroupSignaler() GroupSignaler { return windowsSignaler{} }

// windowsSignaler cannot address a whole process tree with group
// semantics, so timeout enforcement is refused before anything spawns.
type windowsSignaler struct{}

func (windowsSignaler) Supported() bool { return false }

func (windowsSignaler) Detach(cmd *exec.Cmd) {}

func (windowsSignaler) Interrupt(pid int) error {
	return errors.New("process group signaling is not supported on windows")
}

func (windowsSignaler) Kill(pid int) error {
	return errors.New("process group signaling is not supported on windows")
}

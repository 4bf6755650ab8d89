//go:build !windows

package runner

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// NewGroupSignaler returns the platform group signaler.
func NewGroupSignaler() GroupSignaler { return posixSignaler{} }

// posixSignaler detaches children into their own process group and
// addresses the whole group with a negative pid.
type posixSignaler struct{}

func (posixSignaler) Supported() bool { return true }

func (posixSignaler) Detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	// Detach from the parent group so inherited signals stop here.
	cmd.SysProcAttr.Setpgid = true
}

func (posixSignaler) Interrupt(pid int) error {
	return groupKill(pid, unix.SIGINT)
}

func (posixSignaler) Kill(pid int) error {
	return groupKill(pid, unix.SIGKILL)
}

func groupKill(pid int, sig unix.Signal) error {
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

//go:build !windows

package runner

import (
	"os/exec"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

func TestGroupSignaler_ToleratesDeadGroup(t *testing.T) {
	sig := NewGroupSignaler()
	if !sig.Supported() {
		t.Fatal("Supported = false on a posix platform")
	}

	cmd := exec.Command("true")
	sig.Detach(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Wait(); err != nil {
		t.Fatal(err)
	}

	// The group is gone; both signals must tolerate that.
	if err := sig.Interrupt(pid); err != nil {
		t.Errorf("Interrupt on dead group: %v", err)
	}
	if err := sig.Kill(pid); err != nil {
		t.Errorf("Kill on dead group: %v", err)
	}
}

func TestGroupSignaler_KillsWholeGroup(t *testing.T) {
	sig := NewGroupSignaler()

	// A shell with a background child; killing the group must take both.
	cmd := exec.Command("/bin/sh", "-c", "sleep 30 & wait")
	sig.Detach(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	leader := cmd.Process.Pid

	var childPid int32
	proc, err := process.NewProcess(int32(leader))
	if err != nil {
		t.Fatalf("inspecting leader: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		children, err := proc.Children()
		if err == nil && len(children) > 0 {
			childPid = children[0].Pid
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if childPid == 0 {
		t.Fatal("shell child never appeared")
	}

	if err := sig.Kill(leader); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if err := cmd.Wait(); err == nil {
		t.Error("Wait returned nil, want a kill signal error")
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		alive, err := process.PidExists(childPid)
		if err == nil && !alive {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("group child %d survived the group kill", childPid)
}

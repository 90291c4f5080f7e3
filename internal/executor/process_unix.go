//go:build unix

package executor

import (
	"os/exec"
	"syscall"
)

// setProcGroup runs the command in its own process group so a timeout can
// kill everything the hook spawned.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcGroup kills the command's whole process group.
func killProcGroup(cmd *exec.Cmd) error {
	if cmd.Process != nil {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	return nil
}

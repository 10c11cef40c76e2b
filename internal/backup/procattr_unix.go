//go:build unix

package backup

import (
	"os/exec"
	"syscall"
)

// detach starts the tool in its own process group so a terminal SIGINT only
// reaches us; the tool is stopped through context cancellation instead.
func detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

//go:build windows

package native

import (
	"os"
	"os/exec"
	"time"
)

func prepareProcessGroup(cmd *exec.Cmd) {}

func signalPid(pid int, force bool) {
	if pid <= 0 {
		return
	}
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}

func terminate(cmd *exec.Cmd, done <-chan struct{}, grace time.Duration) {
	if cmd.Process == nil {
		return
	}
	// Windows has no SIGTERM equivalent the tracer could trap to flush
	// its logs; fall straight to a hard kill.
	_ = cmd.Process.Kill()
	<-done
}

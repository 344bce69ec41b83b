// Package native adapts the teacher's CUDA/CPU build-tag split into the
// platform split the per-execution timeout escalation genuinely needs:
// POSIX process-group signaling (SIGTERM then SIGKILL) exists only on
// non-Windows platforms, so it lives behind build tags exactly the way
// cuda_matcher_cpu.go / cuda_matcher_nvidia.go split GPU-present vs.
// GPU-absent code paths.
package native

import (
	"os/exec"
	"time"
)

// PrepareProcessGroup configures cmd so Terminate can reach the whole
// child process tree (the target plus any tracer subprocess it spawns)
// rather than only the immediate child, where the platform supports it.
func PrepareProcessGroup(cmd *exec.Cmd) {
	prepareProcessGroup(cmd)
}

// Terminate implements spec §5's per-execution timeout escalation: a
// graceful signal first (to let the tracer flush its branch/coverage
// logs), then a forceful kill after grace if the process is still
// running. done is closed by the caller once its Wait on cmd returns,
// so Terminate never calls Wait itself.
func Terminate(cmd *exec.Cmd, done <-chan struct{}, grace time.Duration) {
	terminate(cmd, done, grace)
}

// SignalPid signals a process the engine did not spawn directly — a
// forkserver child known only by the pid the server reported. force
// selects the kill signal over the graceful one.
func SignalPid(pid int, force bool) {
	signalPid(pid, force)
}

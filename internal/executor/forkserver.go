package executor

import (
	"context"
	"encoding/binary"
	"os"
	"os/exec"
	"time"

	"github.com/greybox/eclipser/internal/ecerr"
	"github.com/greybox/eclipser/internal/executor/native"
)

// The forkserver protocol (spec §6.1) reserves fixed descriptors in
// the tracer: 198 for the coverage channel and 194 for the branch
// channel, each with its +1 sibling carrying pid/exit-status replies.
const (
	covCtlFD = 198
	brCtlFD  = 194

	// forkServerInitFactor scales exec_timeout into the ready-handshake
	// budget (spec §5: up to exec_timeout * 10).
	forkServerInitFactor = 10
)

// forkServer drives one persistent tracer process over the 4-byte pipe
// protocol: the controller writes 4 bytes to request a fork, the
// server replies with the child's 4-byte pid, and after the child
// exits the server writes its 4-byte wait status.
type forkServer struct {
	cmd    *exec.Cmd
	ctl    *os.File // fork requests, controller -> server
	status *os.File // pid / exit status, server -> controller
	done   chan error
}

// startForkServer launches the tracer with ECL_FORK_SERVER=1, wires
// the control/status pipes onto the reserved descriptors for the given
// mode (the other channel's descriptors are parked on /dev/null so the
// tracer finds them open), and waits for the 4-byte ready handshake.
func startForkServer(target string, args, env []string, stdin *os.File, mode Mode, initTimeout time.Duration) (*forkServer, error) {
	ctlR, ctlW, err := os.Pipe()
	if err != nil {
		return nil, ecerr.New(ecerr.KindExecutionFailure, "forkserver ctl pipe: %v", err)
	}
	stR, stW, err := os.Pipe()
	if err != nil {
		ctlR.Close()
		ctlW.Close()
		return nil, ecerr.New(ecerr.KindExecutionFailure, "forkserver status pipe: %v", err)
	}

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		ctlR.Close()
		ctlW.Close()
		stR.Close()
		stW.Close()
		return nil, ecerr.New(ecerr.KindExecutionFailure, "forkserver devnull: %v", err)
	}

	ctlFD := covCtlFD
	if mode == ModeBranch {
		ctlFD = brCtlFD
	}

	// ExtraFiles[i] becomes descriptor 3+i in the child; pad the table
	// with /dev/null up to the highest reserved descriptor so the
	// channel lands exactly where the tracer expects it.
	extra := make([]*os.File, covCtlFD+2-3)
	for i := range extra {
		extra[i] = devNull
	}
	extra[ctlFD-3] = ctlR
	extra[ctlFD+1-3] = stW

	cmd := exec.Command(target, args...)
	cmd.Stdin = stdin
	cmd.Env = env
	cmd.ExtraFiles = extra
	native.PrepareProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		ctlR.Close()
		ctlW.Close()
		stR.Close()
		stW.Close()
		devNull.Close()
		return nil, ecerr.New(ecerr.KindExecutionFailure, "start forkserver: %v", err)
	}

	// Child-side ends live on in the tracer; the parent keeps only its
	// own ends so an exiting server is observed as EOF.
	ctlR.Close()
	stW.Close()
	devNull.Close()

	fs := &forkServer{cmd: cmd, ctl: ctlW, status: stR, done: make(chan error, 1)}
	go func() { fs.done <- cmd.Wait() }()

	if _, err := fs.readWord(initTimeout); err != nil {
		fs.stop()
		return nil, ecerr.New(ecerr.KindExecutionFailure, "forkserver ready handshake: %v", err)
	}
	return fs, nil
}

func (f *forkServer) writeWord(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := f.ctl.Write(buf[:])
	return err
}

func (f *forkServer) readWord(timeout time.Duration) (uint32, error) {
	if err := f.status.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	var buf [4]byte
	if _, err := readFull(f.status, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// readFull is io.ReadFull over a deadline-bearing *os.File; spelled
// out so a partial read inside the deadline window still accumulates.
func readFull(f *os.File, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := f.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// execOnce requests one fork and waits for the child's exit status
// within timeout, escalating SIGTERM-then-SIGKILL on expiry exactly as
// the one-shot path does (spec §5).
func (f *forkServer) execOnce(ctx context.Context, timeout time.Duration) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusNormal, err
	}
	if err := f.writeWord(0); err != nil {
		return StatusNormal, ecerr.New(ecerr.KindExecutionFailure, "forkserver fork request: %v", err)
	}
	pid, err := f.readWord(timeout)
	if err != nil {
		return StatusNormal, ecerr.New(ecerr.KindExecutionFailure, "forkserver pid reply: %v", err)
	}

	status, err := f.readWord(timeout)
	if err == nil {
		if status != 0 {
			return StatusCrash, nil
		}
		return StatusNormal, nil
	}
	if !os.IsTimeout(err) {
		return StatusNormal, ecerr.New(ecerr.KindExecutionFailure, "forkserver status reply: %v", err)
	}

	// The child overran exec_timeout: terminate gently so the tracer
	// can flush its logs, then force the issue.
	native.SignalPid(int(pid), false)
	if _, err := f.readWord(killGrace); err == nil {
		return StatusTimeout, nil
	}
	native.SignalPid(int(pid), true)
	if _, err := f.readWord(killGrace); err != nil {
		return StatusNormal, ecerr.New(ecerr.KindExecutionFailure, "forkserver child unkillable: %v", err)
	}
	return StatusTimeout, nil
}

// stop closes the control pipe (the server exits on EOF) and reaps the
// server process, killing it if it lingers.
func (f *forkServer) stop() {
	f.ctl.Close()
	select {
	case <-f.done:
	case <-time.After(killGrace):
		native.Terminate(f.cmd, f.done2struct(), killGrace)
	}
	f.status.Close()
}

func (f *forkServer) done2struct() <-chan struct{} {
	out := make(chan struct{})
	go func() {
		<-f.done
		close(out)
	}()
	return out
}

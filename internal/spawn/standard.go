package spawn

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
)

// StandardAdapter execs a service's command via /bin/sh -c in its own
// process group. The child's stdio is not piped (it is left unconnected),
// and cancelling the spawn context kills the child.
type StandardAdapter struct{}

// Spawn starts req's command line as a child of /bin/sh -c.
func (StandardAdapter) Spawn(ctx context.Context, req Request) (Handle, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", commandLine(req.Command))
	cmd.SysProcAttr = processGroupAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", req.ServiceName, err)
	}

	h := &standardHandle{cmd: cmd, pid: int32(cmd.Process.Pid), done: make(chan struct{})}
	go h.monitor()
	return h, nil
}

type standardHandle struct {
	cmd  *exec.Cmd
	pid  int32
	mu   sync.Mutex
	res  ExitResult
	done chan struct{}
}

func (h *standardHandle) Pid() int32 { return h.pid }

func (h *standardHandle) monitor() {
	err := h.cmd.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		h.res = ExitResult{Code: 0, Message: ""}
	} else if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			h.res = ExitResult{Code: 127, Message: "Exited via signal"}
		} else {
			h.res = ExitResult{Code: exitErr.ExitCode(), Message: err.Error()}
		}
	} else {
		h.res = ExitResult{Code: -1, Message: err.Error()}
	}
	close(h.done)
}

func (h *standardHandle) Wait(ctx context.Context) (ExitResult, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.res, nil
	case <-ctx.Done():
		return ExitResult{}, ctx.Err()
	}
}

func (h *standardHandle) Stop() {
	if h.cmd.Process != nil {
		h.cmd.Process.Signal(syscall.SIGTERM)
	}
}
